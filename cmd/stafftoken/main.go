// Command stafftoken mints signed staff tokens for local development and
// operational tooling. The signing secret comes from MAILPOINT_STAFF_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/authz"
)

func main() {
	log.SetFlags(0)
	var (
		actor    = flag.String("actor", "", "Actor id (staff member identifier)")
		level    = flag.Int("level", 0, "Authority level 1-4")
		prefix   = flag.String("prefix", "", "Assigned address prefix, e.g. CS01A")
		override = flag.Bool("override", false, "Namespace override (levels >= 2, no prefix)")
		ttl      = flag.Duration("ttl", 8*time.Hour, "Token lifetime")
	)
	flag.Parse()

	var assigned address.Prefix
	if *prefix != "" {
		p, err := address.ParsePrefix(*prefix)
		if err != nil {
			log.Fatalf("parse prefix: %v", err)
		}
		assigned = p
	}

	profile := authz.AuthorityProfile{
		ActorID:           *actor,
		Level:             authz.Level(*level),
		AssignedPrefix:    assigned,
		Status:            authz.StatusActive,
		NamespaceOverride: *override,
	}
	token, err := authz.GenerateToken(profile, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
