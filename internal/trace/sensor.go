package trace

import (
	"context"
	"fmt"

	"foodtrace.org/internal/identity"
)

// AddSensorLog appends a cold-chain reading to a shipment. Readings are
// append-only and accepted while the shipment is PROCESSED (awaiting pickup)
// or DISTRIBUTED (in transit), from the distributor designated for that
// stage.
func (s *Service) AddSensorLog(ctx context.Context, caller, id string, reading ColdChainLog) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "distributor")
	if err != nil {
		return Shipment{}, err
	}
	if err := validateGeoPoint(&reading.Coordinates); err != nil {
		return Shipment{}, err
	}

	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if err := requireSensorAccess(actor, sh); err != nil {
		return Shipment{}, err
	}

	now := s.now().UTC()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}
	if sh.DistributorData == nil {
		sh.DistributorData = &DistributorData{}
	}
	sh.DistributorData.SensorLogs = append(sh.DistributorData.SensorLogs, reading)
	sh.LastUpdatedAt = now
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// GetSensorLogs returns every recorded reading for a shipment, oldest first.
func (s *Service) GetSensorLogs(ctx context.Context, caller, id string) ([]ColdChainLog, error) {
	actor, err := s.requireRole(ctx, caller, "distributor")
	if err != nil {
		return nil, err
	}
	sh, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSensorAccess(actor, sh); err != nil {
		return nil, err
	}
	if sh.DistributorData == nil || sh.DistributorData.SensorLogs == nil {
		return []ColdChainLog{}, nil
	}
	return sh.DistributorData.SensorLogs, nil
}

// requireSensorAccess restricts sensor logs to the distributor responsible
// for the shipment at its current stage.
func requireSensorAccess(actor identity.Info, sh Shipment) error {
	var designated string
	switch sh.Status {
	case StatusProcessed:
		if sh.ProcessorData != nil {
			designated = sh.ProcessorData.DestinationDistributor
		}
	case StatusDistributed:
		if sh.DistributorData != nil {
			designated = sh.DistributorData.DistributorAlias
		}
	default:
		return transitionErr(sh.Status, "sensor log")
	}
	if actor.IsAdmin || (designated != "" && designated == actor.Alias) {
		return nil
	}
	return fmt.Errorf("%w: caller is not the responsible distributor for shipment %s", ErrUnauthorized, sh.ID)
}
