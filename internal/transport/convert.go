package transport

import (
	"fmt"

	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/syncerr"
	"github.com/iudanet/edgesync/pkg/api"
)

// ToWire преобразует операцию в DTO.
func ToWire(op *models.Operation) api.Operation {
	return api.Operation{
		WallTime:  op.WallTime,
		Deps:      op.Deps.Clone(),
		ID:        op.ID,
		ItemID:    op.ItemID,
		Category:  op.Category,
		Origin:    op.Origin,
		Kind:      string(op.Kind),
		Payload:   append([]byte(nil), op.Payload...),
		Seq:       op.Seq,
		Timestamp: op.Timestamp,
	}
}

// ToWireOps преобразует срез операций.
func ToWireOps(ops []*models.Operation) []api.Operation {
	out := make([]api.Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, ToWire(op))
	}
	return out
}

// FromWire преобразует DTO в операцию с проверкой полей.
// Некорректная операция является нарушением протокола.
func FromWire(w api.Operation) (*models.Operation, error) {
	op := &models.Operation{
		WallTime:  w.WallTime,
		Deps:      models.VersionVector(w.Deps),
		ID:        w.ID,
		ItemID:    w.ItemID,
		Category:  w.Category,
		Origin:    w.Origin,
		Kind:      models.OpKind(w.Kind),
		Payload:   w.Payload,
		Seq:       w.Seq,
		Timestamp: w.Timestamp,
	}
	if op.Deps == nil {
		op.Deps = models.VersionVector{}
	}
	if err := op.Validate(); err != nil {
		return nil, syncerr.Protocol("decode operation", err)
	}
	return op, nil
}

// FromWireOps преобразует срез DTO; все операции должны принадлежать origin
// (пустой origin отключает проверку).
func FromWireOps(ws []api.Operation, origin string) ([]*models.Operation, error) {
	out := make([]*models.Operation, 0, len(ws))
	for _, w := range ws {
		op, err := FromWire(w)
		if err != nil {
			return nil, err
		}
		if origin != "" && op.Origin != origin {
			return nil, syncerr.Protocol("decode operation",
				fmt.Errorf("operation %s has origin %s, expected %s", op.ID, op.Origin, origin))
		}
		out = append(out, op)
	}
	return out, nil
}

// ToVector преобразует вектор из DTO.
func ToVector(m map[string]uint64) models.VersionVector {
	vv := models.VersionVector{}
	for k, v := range m {
		vv[k] = v
	}
	return vv
}

// FromVector преобразует вектор в DTO.
func FromVector(vv models.VersionVector) map[string]uint64 {
	out := make(map[string]uint64, len(vv))
	for k, v := range vv {
		out[k] = v
	}
	return out
}
