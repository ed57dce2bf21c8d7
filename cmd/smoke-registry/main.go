// Command smoke-registry exercises the registry end to end against the
// in-memory store: provision a zone, occupy a point, contend on a stale
// version, and vacate. Exits non-zero on the first failed expectation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mailpoint.org/internal/address"
	"mailpoint.org/internal/authz"
	"mailpoint.org/internal/registry"
)

func main() {
	ctx := context.Background()
	svc := registry.NewService(registry.NewInMemory())

	manager := authz.AuthorityProfile{
		ActorID:        "smoke-manager",
		Level:          authz.LevelAreaManager,
		AssignedPrefix: address.Prefix("CS01"),
		Status:         authz.StatusActive,
	}
	courier := authz.AuthorityProfile{
		ActorID:        "smoke-courier",
		Level:          authz.LevelCourier,
		AssignedPrefix: address.Prefix("CS01A"),
		Status:         authz.StatusActive,
	}

	inserted, err := svc.ProvisionBatch(ctx, manager, registry.Plan{
		ZonePrefix:     "CS01A",
		FloorStart:     1,
		FloorEnd:       2,
		PointsPerFloor: 3,
		Scheme:         registry.SchemeFloorRoom,
		Type:           registry.PointDormitory,
		RegionName:     "Campus South",
		ZoneName:       "Block A",
	})
	if err != nil {
		log.Fatalf("provision: %v", err)
	}
	if len(inserted) != 6 {
		log.Fatalf("expected 6 points, got %d", len(inserted))
	}

	first := inserted[0]
	occupied, err := svc.AssignOccupant(ctx, courier, first.Code.String(), "stu-42", "Jordan Lee", first.Version)
	if err != nil {
		log.Fatalf("assign: %v", err)
	}
	if !occupied.Occupied() {
		log.Fatalf("expected occupied point, got %#v", occupied)
	}

	// A second assignment against the original version must lose.
	_, err = svc.AssignOccupant(ctx, courier, first.Code.String(), "stu-43", "", first.Version)
	if !errors.Is(err, registry.ErrAlreadyOccupied) && !errors.Is(err, registry.ErrStaleVersion) {
		log.Fatalf("expected occupancy conflict, got %v", err)
	}

	vacated, err := svc.Vacate(ctx, courier, first.Code.String(), occupied.Version)
	if err != nil {
		log.Fatalf("vacate: %v", err)
	}
	if vacated.Occupied() {
		log.Fatalf("expected vacant point, got %#v", vacated)
	}

	// Couriers cannot provision.
	_, err = svc.ProvisionBatch(ctx, courier, registry.Plan{
		ZonePrefix:     "CS01A",
		FloorStart:     3,
		FloorEnd:       3,
		PointsPerFloor: 1,
		Scheme:         registry.SchemeFloorRoom,
		Type:           registry.PointDormitory,
	})
	if !errors.Is(err, registry.ErrDenied) {
		log.Fatalf("expected denial for courier provision, got %v", err)
	}

	fmt.Printf("✅ registry smoke test passed: zone=%s points=%d\n", "CS01A", len(inserted))
}
