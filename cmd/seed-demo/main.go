package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/database"
	"github.com/stemsi/psytest-backend/internal/logger"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/service"
)

var demoTests = []model.CreateTestRequest{
	{Name: "Tes Kemampuan Numerik", Category: "Kognitif", ModuleType: "cognitive", TimeLimit: 30, TotalQuestions: 40},
	{Name: "Tes Kemampuan Verbal", Category: "Kognitif", ModuleType: "cognitive", TimeLimit: 25, TotalQuestions: 40},
	{Name: "Inventori Kepribadian", Category: "Kepribadian", ModuleType: "personality", TimeLimit: 45, TotalQuestions: 120},
	{Name: "Minat Karier", Category: "Minat", ModuleType: "interest", TimeLimit: 20, TotalQuestions: 60},
}

var demoNames = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Lukman Hakim", "Maya Septiana", "Nanda Pratama",
	"Oki Setiana", "Putri Dian", "Rafi Ahmad", "Siska Saraswati", "Toni Setiawan",
}

func main() {
	code := flag.String("code", "DEMO01", "join code for the demo session")
	position := flag.String("position", "Staff Analis", "target position of the demo session")
	hours := flag.Int("hours", 4, "how long the demo session stays open")
	capacity := flag.Int("capacity", 0, "maximum seated participants, 0 for unlimited")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	testRepo := repository.NewTestRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	testService := service.NewTestService(testRepo, cache.New(rdb, cfg.TestCacheTTL), log)
	sessionService := service.NewSessionService(repository.NewSessionRepository(pool), participantRepo, testRepo, clock.Real{}, log)

	fmt.Println("=== Seeding test modules ===")
	modules := make([]model.SessionModuleRequest, 0, len(demoTests))
	for i, req := range demoTests {
		t, err := testService.Create(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Str("test", req.Name).Msg("Failed to create test")
		}
		modules = append(modules, model.SessionModuleRequest{TestID: t.ID, Sequence: i + 1, Weight: 1})
		fmt.Printf("  %d. %s (%s)\n", i+1, t.Name, t.ID)
	}

	fmt.Println("=== Seeding participants ===")
	ids := make([]int, 0, len(demoNames))
	for i, name := range demoNames {
		p := &model.Participant{Name: name, Phone: fmt.Sprintf("08120000%04d", i+1)}
		if err := participantRepo.Create(ctx, p); err != nil {
			log.Error().Err(err).Str("name", name).Msg("Failed to create participant")
			continue
		}
		ids = append(ids, p.ID)
	}
	fmt.Printf("  created %d/%d participants\n", len(ids), len(demoNames))

	start := time.Now().Truncate(time.Minute)
	req := model.CreateSessionRequest{
		Name:           "Sesi Demo " + *position,
		JoinCode:       *code,
		StartTime:      start,
		EndTime:        start.Add(time.Duration(*hours) * time.Hour),
		TargetPosition: *position,
		AllowLateEntry: true,
		Modules:        modules,
	}
	if *capacity > 0 {
		req.MaxParticipants = capacity
	}

	s, err := sessionService.Create(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}
	n, err := sessionService.Register(ctx, s.ID, ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register participants")
	}

	fmt.Printf("\nSession %s ready: join code %s, %d participants registered, open until %s\n",
		s.ID, s.JoinCode, n, s.EndTime.Format(time.RFC3339))
	if len(ids) > 0 {
		fmt.Println("Issue a participant token with: go run ./cmd/issue-token -participant", ids[0])
	}
}
