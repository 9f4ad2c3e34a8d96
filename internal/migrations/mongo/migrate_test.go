package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections(t *testing.T) {
	defs := Collections()

	for _, name := range []string{"Users", "Events", "Bookings"} {
		def, ok := defs[name]
		if !ok {
			t.Fatalf("missing collection %s", name)
		}
		if len(def.Indexes) == 0 {
			t.Errorf("%s has no indexes", name)
		}
		if _, ok := def.Validator["$jsonSchema"]; !ok {
			t.Errorf("%s validator has no $jsonSchema", name)
		}
	}
}

func TestUsersEmailIndexIsUnique(t *testing.T) {
	for _, idx := range UsersIndexes {
		keys := idx.Keys.(bson.D)
		if len(keys) == 1 && keys[0].Key == "email" {
			if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
				t.Fatal("email index must be unique")
			}
			return
		}
	}
	t.Fatal("no email index")
}

func TestEventValidatorGuardsCapacity(t *testing.T) {
	expr, ok := Collections()["Events"].Validator["$expr"].(bson.M)
	if !ok {
		t.Fatal("event validator must constrain booked_count against capacity")
	}
	if _, ok := expr["$lte"]; !ok {
		t.Errorf("unexpected $expr: %v", expr)
	}
}
