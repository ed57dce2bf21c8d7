package authz

import (
	"testing"

	"mailpoint.org/internal/address"
)

func courier(prefix string) AuthorityProfile {
	return AuthorityProfile{
		ActorID:        "courier-1",
		Level:          LevelCourier,
		AssignedPrefix: address.Prefix(prefix),
		Status:         StatusActive,
	}
}

func TestCourierGrantAndDeny(t *testing.T) {
	actor := courier("CS01A")
	target := address.MustParse("CS01A07")

	if d := Authorize(actor, target, CapCreate); !d.Denied() || d.Reason != DenyCapabilityNotGranted {
		t.Fatalf("couriers must not create: %v", d)
	}
	if d := Authorize(actor, target, CapEdit); d.Denied() {
		t.Fatalf("edit within prefix should be allowed: %v", d)
	}
	other := address.MustParse("CS01B03")
	if d := Authorize(actor, other, CapEdit); !d.Denied() || d.Reason != DenyPrefixMismatch {
		t.Fatalf("edit outside prefix must be denied: %v", d)
	}
}

func TestSuspendedActorDenied(t *testing.T) {
	actor := courier("CS01A")
	actor.Status = StatusSuspended
	if d := Authorize(actor, address.MustParse("CS01A07"), CapView); !d.Denied() || d.Reason != DenyActorInactive {
		t.Fatalf("suspended actor must be denied: %v", d)
	}
}

func TestCapabilityMatrix(t *testing.T) {
	cases := []struct {
		level Level
		cap   Capability
		want  bool
	}{
		{LevelCourier, CapView, true},
		{LevelCourier, CapDelete, false},
		{LevelCourier, CapBatchManage, false},
		{LevelZoneLead, CapCreate, true},
		{LevelZoneLead, CapBatchManage, false},
		{LevelAreaManager, CapBatchManage, true},
		{LevelRegionCoordinator, CapBatchManage, true},
	}
	for _, tc := range cases {
		if got := tc.level.Grants(tc.cap); got != tc.want {
			t.Fatalf("level %d %s: got %v, want %v", tc.level, tc.cap, got, tc.want)
		}
	}
}

func TestAuthorizeIsStateless(t *testing.T) {
	actor := courier("CS01A")
	target := address.MustParse("CS01A07")
	first := Authorize(actor, target, CapEdit)
	for i := 0; i < 10; i++ {
		Authorize(actor, address.MustParse("CS01B03"), CapDelete)
		if got := Authorize(actor, target, CapEdit); got != first {
			t.Fatalf("decision changed across calls: %v != %v", got, first)
		}
	}
}

// A region coordinator's scope is a superset of every courier scope under the
// same region, for view and edit.
func TestPrefixMonotonicity(t *testing.T) {
	coordinator := AuthorityProfile{
		ActorID:        "coord-1",
		Level:          LevelRegionCoordinator,
		AssignedPrefix: "CS",
		Status:         StatusActive,
	}
	courierActor := courier("CS01A")

	codes := []address.Code{
		address.MustParse("CS01A01"),
		address.MustParse("CS01A99"),
		address.MustParse("CS01AZZ"),
	}
	for _, code := range codes {
		for _, c := range []Capability{CapView, CapEdit} {
			if Authorize(courierActor, code, c).Denied() {
				t.Fatalf("courier should reach %s under own prefix", code)
			}
			if Authorize(coordinator, code, c).Denied() {
				t.Fatalf("coordinator must cover courier-reachable code %s", code)
			}
		}
	}
}

func TestNamespaceOverride(t *testing.T) {
	admin := AuthorityProfile{
		ActorID:           "admin-1",
		Level:             LevelAreaManager,
		Status:            StatusActive,
		NamespaceOverride: true,
	}
	anywhere := address.MustParse("ZZ99X01")
	if d := Authorize(admin, anywhere, CapView); d.Denied() {
		t.Fatalf("override should grant blanket view: %v", d)
	}
	if d := Authorize(admin, anywhere, CapEdit); d.Denied() {
		t.Fatalf("override should grant blanket edit: %v", d)
	}
	if d := Authorize(admin, anywhere, CapDelete); !d.Denied() || d.Reason != DenyPrefixMismatch {
		t.Fatalf("override must not extend beyond view/edit: %v", d)
	}
}

func TestValidateProfile(t *testing.T) {
	cases := []struct {
		name    string
		profile AuthorityProfile
		ok      bool
	}{
		{"courier zone prefix", courier("CS01A"), true},
		{"courier sub-point prefix", courier("CS01A0"), true},
		{"courier full code prefix", courier("CS01A07"), true},
		{"courier region prefix", courier("CS"), false},
		{"zone lead", AuthorityProfile{ActorID: "z", Level: LevelZoneLead, AssignedPrefix: "CS01A", Status: StatusActive}, true},
		{"zone lead misaligned", AuthorityProfile{ActorID: "z", Level: LevelZoneLead, AssignedPrefix: "CS01", Status: StatusActive}, false},
		{"area manager", AuthorityProfile{ActorID: "a", Level: LevelAreaManager, AssignedPrefix: "CS01", Status: StatusActive}, true},
		{"coordinator", AuthorityProfile{ActorID: "c", Level: LevelRegionCoordinator, AssignedPrefix: "CS", Status: StatusActive}, true},
		{"coordinator overlong", AuthorityProfile{ActorID: "c", Level: LevelRegionCoordinator, AssignedPrefix: "CS01A", Status: StatusActive}, false},
		{"override courier", AuthorityProfile{ActorID: "o", Level: LevelCourier, Status: StatusActive, NamespaceOverride: true}, false},
		{"override with prefix", AuthorityProfile{ActorID: "o", Level: LevelAreaManager, AssignedPrefix: "CS01", Status: StatusActive, NamespaceOverride: true}, false},
		{"missing actor", AuthorityProfile{Level: LevelCourier, AssignedPrefix: "CS01A", Status: StatusActive}, false},
		{"bad level", AuthorityProfile{ActorID: "x", Level: 7, AssignedPrefix: "CS01A", Status: StatusActive}, false},
	}
	for _, tc := range cases {
		err := tc.profile.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
