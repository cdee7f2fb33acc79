package trace

import (
	"fmt"
	"strings"
)

const (
	maxStringInputLength  = 256
	maxDescriptionLength  = 1024
	maxRecallReasonLength = 512
	maxArrayElements      = 50
)

func validateRequiredString(v, name string, max int) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	return validateOptionalString(v, name, max)
}

func validateOptionalString(v, name string, max int) error {
	if len(v) > max {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrValidation, name, max)
	}
	return nil
}

func validateQuantity(q float64) error {
	if q <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	return nil
}

func validateGeoPoint(p *GeoPoint) error {
	if p == nil {
		return nil
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range", ErrValidation)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range", ErrValidation)
	}
	return nil
}

func validateIDList(ids []string, name string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrValidation, name)
	}
	if len(ids) > maxArrayElements {
		return fmt.Errorf("%w: %s exceeds %d elements", ErrValidation, name, maxArrayElements)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: %s contains an empty id", ErrValidation, name)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s contains duplicate id %q", ErrValidation, name, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateFarmerData(fd FarmerData) error {
	if err := validateRequiredString(fd.FarmLocation, "farmLocation", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(fd.CropType, "cropType", maxStringInputLength); err != nil {
		return err
	}
	if err := validateGeoPoint(fd.FarmCoordinates); err != nil {
		return err
	}
	if fd.PlantingDate.IsZero() || fd.HarvestDate.IsZero() {
		return fmt.Errorf("%w: plantingDate and harvestDate are required", ErrValidation)
	}
	if fd.HarvestDate.Before(fd.PlantingDate) {
		return fmt.Errorf("%w: harvestDate precedes plantingDate", ErrValidation)
	}
	return validateOptionalString(fd.DestinationProcessor, "destinationProcessorAlias", maxStringInputLength)
}

func validateProcessorData(pd ProcessorData) error {
	if err := validateRequiredString(pd.ProcessingType, "processingType", maxStringInputLength); err != nil {
		return err
	}
	if pd.DateProcessed.IsZero() {
		return fmt.Errorf("%w: dateProcessed is required", ErrValidation)
	}
	if err := validateOptionalString(pd.ProcessingLineID, "processingLineId", maxStringInputLength); err != nil {
		return err
	}
	return validateOptionalString(pd.DestinationDistributor, "destinationDistributorAlias", maxStringInputLength)
}

func validateDistributorData(dd DistributorData) error {
	if dd.PickupDateTime.IsZero() {
		return fmt.Errorf("%w: pickupDateTime is required", ErrValidation)
	}
	if !dd.DeliveryDateTime.IsZero() && dd.DeliveryDateTime.Before(dd.PickupDateTime) {
		return fmt.Errorf("%w: deliveryDateTime precedes pickupDateTime", ErrValidation)
	}
	if err := validateOptionalString(dd.DistributionLineID, "distributionLineId", maxStringInputLength); err != nil {
		return err
	}
	return validateOptionalString(dd.DestinationRetailer, "destinationRetailerAlias", maxStringInputLength)
}

func validateRetailerData(rd RetailerData) error {
	if rd.DateReceived.IsZero() {
		return fmt.Errorf("%w: dateReceived is required", ErrValidation)
	}
	return validateOptionalString(rd.StoreLocation, "storeLocation", maxStringInputLength)
}

// normalizeShipment initializes the slice fields so stored documents always
// carry the full schema.
func normalizeShipment(s *Shipment) {
	if s.InputShipmentIDs == nil {
		s.InputShipmentIDs = []string{}
	}
	if s.CertificationRecords == nil {
		s.CertificationRecords = []CertificationRecord{}
	}
	if s.RecallInfo.LinkedShipmentIDs == nil {
		s.RecallInfo.LinkedShipmentIDs = []string{}
	}
}
