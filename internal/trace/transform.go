package trace

import (
	"context"
	"fmt"

	"foodtrace.org/internal/store"
)

// consumableStatuses are the states a shipment may be in when used as a
// transformation input.
var consumableStatuses = map[Status]bool{
	StatusCertified: true,
	StatusProcessed: true,
	StatusDelivered: true,
}

// Transform consumes the input shipments and creates the output products in
// one atomic batch. Either every input flips to CONSUMED_IN_PROCESSING and
// every output exists, or nothing is written.
func (s *Service) Transform(ctx context.Context, caller string, inputIDs []string, outputs []NewProductSpec, pd ProcessorData) ([]Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "processor")
	if err != nil {
		return nil, err
	}
	if err := validateIDList(inputIDs, "inputShipmentIds"); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: at least one output product is required", ErrValidation)
	}
	if len(outputs) > maxArrayElements {
		return nil, fmt.Errorf("%w: outputs exceed %d elements", ErrValidation, maxArrayElements)
	}
	if err := validateProcessorData(pd); err != nil {
		return nil, err
	}
	pd.ProcessorAlias = actor.Alias

	outputIDs := make([]string, 0, len(outputs))
	for _, spec := range outputs {
		if err := validateRequiredString(spec.ID, "output id", maxStringInputLength); err != nil {
			return nil, err
		}
		if err := validateRequiredString(spec.ProductName, "output productName", maxStringInputLength); err != nil {
			return nil, err
		}
		if err := validateRequiredString(spec.UnitOfMeasure, "output unitOfMeasure", maxStringInputLength); err != nil {
			return nil, err
		}
		if err := validateQuantity(spec.Quantity); err != nil {
			return nil, err
		}
		outputIDs = append(outputIDs, spec.ID)
	}
	if err := validateIDList(outputIDs, "output ids"); err != nil {
		return nil, err
	}
	inputSet := make(map[string]struct{}, len(inputIDs))
	for _, id := range inputIDs {
		inputSet[id] = struct{}{}
	}
	for _, id := range outputIDs {
		if _, clash := inputSet[id]; clash {
			return nil, fmt.Errorf("%w: output id %q is also an input", ErrValidation, id)
		}
	}

	now := s.now().UTC()
	writes := make([]write, 0, len(inputIDs)+len(outputs))

	// Stage the input consumptions, verifying eligibility against the
	// versions read here; Apply re-checks those versions at commit.
	for _, id := range inputIDs {
		sh, version, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if sh.IsArchived {
			return nil, fmt.Errorf("%w: input %s is archived", ErrInvalidTransition, id)
		}
		if sh.RecallInfo.IsRecalled {
			return nil, fmt.Errorf("%w: input %s is under recall", ErrInvalidTransition, id)
		}
		if sh.Status == StatusConsumedInProcessing || sh.Status == StatusConsumed {
			return nil, fmt.Errorf("%w: input %s is already consumed", ErrInvalidTransition, id)
		}
		if !consumableStatuses[sh.Status] {
			return nil, transitionErr(sh.Status, "Transform")
		}
		if sh.CurrentOwnerAlias != actor.Alias {
			// Ownership moves to the transforming processor. A certified
			// input still honors the farmer's designated routing.
			if sh.Status == StatusCertified {
				if err := s.requireDesignation(actor, sh.FarmerData.destinationProcessor()); err != nil {
					return nil, err
				}
			}
			sh.CurrentOwnerAlias = actor.Alias
		}

		sh.Status = StatusConsumedInProcessing
		sh.Quantity = 0
		sh.LastUpdatedAt = now
		writes = append(writes, write{shipment: sh, version: version})
	}

	created := make([]Shipment, 0, len(outputs))
	for _, spec := range outputs {
		if _, err := s.store.Get(ctx, shipmentPrefix+spec.ID); err == nil {
			return nil, fmt.Errorf("%w: output %s", ErrAlreadyExists, spec.ID)
		} else if err != store.ErrNotFound {
			return nil, err
		}

		pdCopy := pd
		out := Shipment{
			ID:                spec.ID,
			ProductName:       spec.ProductName,
			Description:       spec.Description,
			Quantity:          spec.Quantity,
			UnitOfMeasure:     spec.UnitOfMeasure,
			CurrentOwnerAlias: actor.Alias,
			Status:            StatusProcessed,
			IsDerivedProduct:  true,
			InputShipmentIDs:  append([]string(nil), inputIDs...),
			ProcessorData:     &pdCopy,
			CreatedAt:         now,
			LastUpdatedAt:     now,
		}
		normalizeShipment(&out)
		created = append(created, out)
		writes = append(writes, write{shipment: out, version: 0})
	}

	if err := s.commit(ctx, writes); err != nil {
		return nil, err
	}
	return created, nil
}
