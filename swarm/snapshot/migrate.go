package snapshot

import (
	"github.com/BaSui01/swarmflow/types"
)

// CurrentVersion is the snapshot schema version written by this build.
const CurrentVersion = 3

// migration upgrades a raw document from version N to N+1 in place.
type migration func(doc map[string]any) error

// migrations[i] upgrades version i+1 to i+2.
var migrations = []migration{
	migrateV1toV2,
	migrateV2toV3,
}

// Migrate upgrades a raw document to CurrentVersion, one step per version
// gap, in order. The returned version is the one the document started at.
func Migrate(doc map[string]any) (int, error) {
	from, err := versionOf(doc)
	if err != nil {
		return 0, err
	}
	for v := from; v < CurrentVersion; v++ {
		if err := migrations[v-1](doc); err != nil {
			return from, types.NewSchemaError("migrate v%d to v%d: %v", v, v+1, err).WithCause(err)
		}
		doc["version"] = v + 1
	}
	return from, nil
}

func versionOf(doc map[string]any) (int, error) {
	raw, ok := doc["version"]
	if !ok {
		return 0, types.NewSchemaError("snapshot has no version")
	}
	f, ok := raw.(float64)
	if !ok {
		if i, isInt := raw.(int); isInt {
			f = float64(i)
		} else {
			return 0, types.NewSchemaError("snapshot version is not a number: %v", raw)
		}
	}
	v := int(f)
	if float64(v) != f {
		return 0, types.NewSchemaError("snapshot version is not an integer: %v", raw)
	}
	if v < 1 {
		return 0, types.NewSchemaError("snapshot version %d is invalid", v)
	}
	if v > CurrentVersion {
		return 0, types.NewSchemaError("snapshot version %d is newer than supported version %d", v, CurrentVersion)
	}
	return v, nil
}

// v1 → v2: requests gain "created"; old requests are stamped with the
// document's cycle so they age from the upgrade on.
func migrateV1toV2(doc map[string]any) error {
	cycle, _ := doc["cycle"].(float64)
	return eachRegion(doc, func(region map[string]any) error {
		reqs, ok := region["requests"]
		if !ok || reqs == nil {
			return nil
		}
		byObjective, ok := reqs.(map[string]any)
		if !ok {
			return types.NewSchemaError("requests is not an object")
		}
		for obj, list := range byObjective {
			items, ok := list.([]any)
			if !ok {
				return types.NewSchemaError("requests of %q is not a list", obj)
			}
			for _, it := range items {
				req, ok := it.(map[string]any)
				if !ok {
					return types.NewSchemaError("request of %q is not an object", obj)
				}
				if _, has := req["created"]; !has {
					req["created"] = cycle
				}
			}
		}
		return nil
	})
}

// v2 → v3: regions gain "capacity"; assignments gain "state".
func migrateV2toV3(doc map[string]any) error {
	return eachRegion(doc, func(region map[string]any) error {
		if _, ok := region["capacity"]; !ok {
			region["capacity"] = []any{}
		}
		raw, ok := region["assignments"]
		if !ok || raw == nil {
			return nil
		}
		assignments, ok := raw.(map[string]any)
		if !ok {
			return types.NewSchemaError("assignments is not an object")
		}
		for worker, a := range assignments {
			desc, ok := a.(map[string]any)
			if !ok {
				return types.NewSchemaError("assignment of %q is not an object", worker)
			}
			if _, has := desc["state"]; !has {
				desc["state"] = "pending_prereq"
			}
		}
		return nil
	})
}

func eachRegion(doc map[string]any, fn func(region map[string]any) error) error {
	raw, ok := doc["regions"]
	if !ok || raw == nil {
		return nil
	}
	regions, ok := raw.(map[string]any)
	if !ok {
		return types.NewSchemaError("regions is not an object")
	}
	for name, r := range regions {
		region, ok := r.(map[string]any)
		if !ok {
			return types.NewSchemaError("region %q is not an object", name)
		}
		if err := fn(region); err != nil {
			return err
		}
	}
	return nil
}
