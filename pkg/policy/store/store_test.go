package store

import (
	"context"
	"errors"
	"testing"

	"fedgrid-hq/triton/pkg/policy"
)

func testPolicy(id string) *policy.Policy {
	return &policy.Policy{
		ID:       id,
		Name:     "Prioritize FL traffic",
		Category: "qos",
		Priority: 100,
		Condition: &policy.Condition{
			Field:    "traffic_type",
			Operator: policy.OpEquals,
			Value:    "fl_communication",
		},
		Actions: []policy.Action{
			{Type: policy.ActionSetQoSClass, Parameters: map[string]interface{}{"qos_class": "expedited"}},
		},
		Schedule: policy.Schedule{Type: policy.ScheduleAlways},
	}
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(SQLiteConfig{Path: t.TempDir() + "/policies.db"})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := store.Create(ctx, testPolicy(""))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if id == "" {
				t.Fatal("Create returned empty id")
			}

			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Version != 1 {
				t.Errorf("Version = %d, want 1", got.Version)
			}
			if got.State != policy.StateDraft {
				t.Errorf("State = %s, want draft", got.State)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("timestamps not set on create")
			}
			if got.Condition.Field != "traffic_type" {
				t.Errorf("condition not round-tripped: %+v", got.Condition)
			}
		})
	}
}

func TestStore_CreateRejections(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, testPolicy("pol_a")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			t.Run("duplicate id", func(t *testing.T) {
				_, err := store.Create(ctx, testPolicy("pol_a"))
				var verr *policy.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
			})

			t.Run("unknown requires reference", func(t *testing.T) {
				p := testPolicy("pol_b")
				p.Requires = []string{"pol_missing"}
				_, err := store.Create(ctx, p)
				var verr *policy.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				// No partial write.
				if _, err := store.Get(ctx, "pol_b"); err == nil {
					t.Error("rejected policy was persisted")
				}
			})

			t.Run("unknown conflicts reference", func(t *testing.T) {
				p := testPolicy("pol_c")
				p.Conflicts = []string{"pol_missing"}
				if _, err := store.Create(ctx, p); err == nil {
					t.Fatal("expected rejection for unknown conflicts id")
				}
			})

			t.Run("requires cycle", func(t *testing.T) {
				if _, err := store.Create(ctx, testPolicy("pol_b")); err != nil {
					t.Fatalf("Create pol_b: %v", err)
				}
				c := testPolicy("pol_c")
				c.Requires = []string{"pol_b"}
				if _, err := store.Create(ctx, c); err != nil {
					t.Fatalf("Create pol_c: %v", err)
				}
				// Closing the loop must be rejected.
				b2, err := store.Get(ctx, "pol_b")
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				b2.Requires = []string{"pol_c"}
				if _, err := store.Update(ctx, b2, b2.Version); err == nil {
					t.Fatal("expected rejection for requires cycle")
				}
			})
		})
	}
}

func TestStore_UpdateVersioning(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := store.Create(ctx, testPolicy("pol_a"))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			p, _ := store.Get(ctx, id)
			p.Priority = 200
			newVersion, err := store.Update(ctx, p, 1)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if newVersion != 2 {
				t.Fatalf("new version = %d, want 2", newVersion)
			}

			// Stale writer loses.
			p.Priority = 300
			_, err = store.Update(ctx, p, 1)
			var conflict *VersionConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("err = %v, want VersionConflictError", err)
			}
			if conflict.Actual != 2 {
				t.Errorf("conflict.Actual = %d, want 2", conflict.Actual)
			}

			// The stale write left nothing behind.
			got, _ := store.Get(ctx, id)
			if got.Priority != 200 || got.Version != 2 {
				t.Errorf("stored = priority %d version %d, want 200/2", got.Priority, got.Version)
			}
		})
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := store.Create(ctx, testPolicy("pol_a"))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			if err := store.SetState(ctx, id, policy.StateActive); err != nil {
				t.Fatalf("SetState active: %v", err)
			}
			got, _ := store.Get(ctx, id)
			if got.State != policy.StateActive || !got.Enabled {
				t.Fatalf("after activation: state=%s enabled=%v", got.State, got.Enabled)
			}

			// Draft is not reachable again.
			err = store.SetState(ctx, id, policy.StateDraft)
			var terr *policy.StateTransitionError
			if !errors.As(err, &terr) {
				t.Fatalf("err = %v, want StateTransitionError", err)
			}

			if err := store.Delete(ctx, id); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			got, _ = store.Get(ctx, id)
			if got.State != policy.StateArchived {
				t.Fatalf("after delete: state=%s, want archived", got.State)
			}

			// Archived is terminal and immutable.
			if err := store.Delete(ctx, id); err != nil {
				t.Errorf("second delete should be a no-op, got %v", err)
			}
			got.Priority = 999
			if _, err := store.Update(ctx, got, got.Version); err == nil {
				t.Error("update of archived policy was accepted")
			}
		})
	}
}

func TestStore_RevertAndVersions(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := store.Create(ctx, testPolicy("pol_a"))
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			p, _ := store.Get(ctx, id)
			p.Priority = 200
			if _, err := store.Update(ctx, p, 1); err != nil {
				t.Fatalf("Update: %v", err)
			}
			p, _ = store.Get(ctx, id)
			p.Priority = 300
			if _, err := store.Update(ctx, p, 2); err != nil {
				t.Fatalf("Update: %v", err)
			}

			versions, err := store.Versions(ctx, id)
			if err != nil {
				t.Fatalf("Versions: %v", err)
			}
			if len(versions) != 2 {
				t.Fatalf("got %d historical versions, want 2", len(versions))
			}
			if versions[0].Version != 1 || versions[1].Version != 2 {
				t.Fatalf("versions out of order: %d, %d", versions[0].Version, versions[1].Version)
			}

			restored, err := store.Revert(ctx, id, 1)
			if err != nil {
				t.Fatalf("Revert: %v", err)
			}
			if restored.Priority != 100 {
				t.Errorf("restored priority = %d, want 100", restored.Priority)
			}
			if restored.Version != 4 {
				t.Errorf("restored version = %d, want 4 (revert is a new version)", restored.Version)
			}

			_, err = store.Revert(ctx, id, 17)
			var nfe *NotFoundError
			if !errors.As(err, &nfe) {
				t.Fatalf("err = %v, want NotFoundError", err)
			}
		})
	}
}

func TestStore_ListFilters(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, p := range []*policy.Policy{
				testPolicy("pol_a"), testPolicy("pol_b"), testPolicy("pol_c"),
			} {
				if _, err := store.Create(ctx, p); err != nil {
					t.Fatalf("Create %s: %v", p.ID, err)
				}
			}
			if err := store.SetState(ctx, "pol_b", policy.StateActive); err != nil {
				t.Fatalf("SetState: %v", err)
			}

			active, err := store.List(ctx, ListFilter{State: policy.StateActive})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(active) != 1 || active[0].ID != "pol_b" {
				t.Fatalf("active list = %+v, want [pol_b]", active)
			}

			all, err := store.List(ctx, ListFilter{})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("got %d policies, want 3", len(all))
			}
			if all[0].ID != "pol_a" || all[2].ID != "pol_c" {
				t.Errorf("list not ordered by id: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
			}

			page, err := store.List(ctx, ListFilter{Limit: 1, Offset: 1})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(page) != 1 || page[0].ID != "pol_b" {
				t.Fatalf("page = %+v, want [pol_b]", page)
			}
		})
	}
}

func TestMemoryStore_HandsOutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Create(ctx, testPolicy("pol_a"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := store.Get(ctx, id)
	got.Name = "mutated"
	got.Condition.Field = "mutated"

	again, _ := store.Get(ctx, id)
	if again.Name == "mutated" || again.Condition.Field == "mutated" {
		t.Fatal("Get exposed internal state")
	}
}
