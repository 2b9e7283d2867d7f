package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/service"
)

func main() {
	participant := flag.Int("participant", 0, "issue a participant token for this participant ID")
	admin := flag.Int("admin", 0, "issue an admin token for this admin ID")
	perms := flag.String("perms", "", "comma separated admin permissions, empty grants all")
	flag.Parse()

	if (*participant > 0) == (*admin > 0) {
		fmt.Fprintln(os.Stderr, "exactly one of -participant or -admin is required")
		flag.Usage()
		os.Exit(2)
	}

	auth := service.NewAuthService(config.Load())

	var (
		token string
		err   error
	)
	if *participant > 0 {
		token, err = auth.GenerateParticipantToken(*participant)
	} else {
		token, err = auth.GenerateAdminToken(*admin, permissionList(*perms))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func permissionList(raw string) []string {
	if raw == "" {
		out := make([]string, len(model.AllPermissions))
		for i, p := range model.AllPermissions {
			out[i] = string(p)
		}
		return out
	}
	var out []string
	for p := range strings.SplitSeq(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
