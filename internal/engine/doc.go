// Package engine holds the session and attempt lifecycle rules.
//
// Every function here is pure: it takes stored records plus the instant the caller observed
// and returns a decision or a new record. Reading and writing the records, and taking the
// locks that make a decision stick, is the caller's job.
//
// # Session lifecycle
//
//	draft ──(start_time reached)──▶ active ──(end_time passed, auto_expire)──▶ expired
//	  │                               ├──(admin)──▶ completed
//	  └──(admin)──▶ cancelled ◀───────┘
//
// expired, completed and cancelled are terminal.
//
// # Attempt lifecycle
//
//	not_started ──start──▶ in_progress ──finish──▶ completed
//	                            ├──time limit, answers > 0──▶ auto_completed
//	                            └──time limit or session over, no answers──▶ expired
package engine
