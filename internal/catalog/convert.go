package catalog

import (
	"fmt"

	"github.com/dnswlt/dflineage/internal/api"
)

// APIObjectID converts r into a minimal reference for the wire.
func APIObjectID(r *Ref) *api.ObjectID {
	return &api.ObjectID{
		TypeName:         r.TypeName,
		UniqueAttributes: &api.UniqueAttributes{QualifiedName: r.QualifiedName},
	}
}

func apiObjectIDs(refs []*Ref) []*api.ObjectID {
	result := make([]*api.ObjectID, len(refs))
	for i, r := range refs {
		result[i] = APIObjectID(r)
	}
	return result
}

// ToAPI converts an entity into its wire representation.
func ToAPI(e Entity) (*api.Entity, error) {
	attrs := withNames(e, e.GetAttributes())
	result := &api.Entity{
		TypeName:   e.GetTypeName(),
		GUID:       e.GetGUID(),
		Attributes: attrs,
	}
	switch x := e.(type) {
	case *Process:
		attrs[AttrInputs] = apiObjectIDs(x.Inputs)
		attrs[AttrOutputs] = apiObjectIDs(x.Outputs)
	case *DataFrame:
		// No references.
	case *Column:
		if x.DataFrame != nil {
			result.RelationshipAttributes = map[string]any{
				x.RelName: APIObjectID(x.DataFrame),
			}
		}
	default:
		return nil, fmt.Errorf("unsupported entity type %T", e)
	}
	return result, nil
}

// ToAPIBatch converts all entities of b in upload order.
func ToAPIBatch(b *Batch) ([]*api.Entity, error) {
	entities := b.Entities()
	result := make([]*api.Entity, 0, len(entities))
	for _, e := range entities {
		ae, err := ToAPI(e)
		if err != nil {
			return nil, err
		}
		result = append(result, ae)
	}
	return result, nil
}
