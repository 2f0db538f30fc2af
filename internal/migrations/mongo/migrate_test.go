package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_Complete(t *testing.T) {
	collections := Collections()
	if len(collections) != 4 {
		t.Fatalf("collections = %d, want 4", len(collections))
	}
	for name, def := range collections {
		if def.Validator == nil {
			t.Errorf("%s has no validator", name)
		}
		if len(def.Indexes) == 0 {
			t.Errorf("%s has no indexes", name)
		}
	}
}

func TestUsersIndexes_EmailUnique(t *testing.T) {
	for _, idx := range UsersIndexes {
		keys, ok := idx.Keys.(bson.D)
		if !ok || len(keys) != 1 || keys[0].Key != "email" {
			continue
		}
		if idx.Options == nil || idx.Options.Unique == nil || !*idx.Options.Unique {
			t.Error("email index is not unique")
		}
		return
	}
	t.Error("no email index")
}
