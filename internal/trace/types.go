package trace

import (
	"errors"
	"time"
)

// Status enumerates the shipment lifecycle states. A recall is an overlay
// flag in RecallInfo, not a status.
type Status string

const (
	StatusCreated              Status = "CREATED"
	StatusPendingCertification Status = "PENDING_CERTIFICATION"
	StatusCertified            Status = "CERTIFIED"
	StatusCertificationDenied  Status = "CERTIFICATION_REJECTED"
	StatusProcessed            Status = "PROCESSED"
	StatusDistributed          Status = "DISTRIBUTED"
	StatusDelivered            Status = "DELIVERED"
	StatusConsumed             Status = "CONSUMED"
	StatusConsumedInProcessing Status = "CONSUMED_IN_PROCESSING"
)

// CertDecision is the outcome a certifier records for a pending shipment.
type CertDecision string

const (
	CertPending  CertDecision = "PENDING"
	CertApproved CertDecision = "APPROVED"
	CertRejected CertDecision = "REJECTED"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FarmerData is the stage payload attached at creation.
type FarmerData struct {
	FarmerAlias          string    `json:"farmerAlias"`
	FarmLocation         string    `json:"farmLocation"`
	FarmCoordinates      *GeoPoint `json:"farmCoordinates,omitempty"`
	CropType             string    `json:"cropType"`
	PlantingDate         time.Time `json:"plantingDate"`
	HarvestDate          time.Time `json:"harvestDate"`
	FarmingPractice      string    `json:"farmingPractice,omitempty"`
	CertificationDocHash string    `json:"certificationDocumentHash,omitempty"`
	DestinationProcessor string    `json:"destinationProcessorAlias,omitempty"`
}

// CertificationRecord is one certifier visit. Records are append-only.
type CertificationRecord struct {
	CertifierAlias string       `json:"certifierAlias"`
	Decision       CertDecision `json:"decision"`
	Comments       string       `json:"comments,omitempty"`
	InspectionDate time.Time    `json:"inspectionDate"`
	RecordedAt     time.Time    `json:"recordedAt"`
}

// ProcessorData is the stage payload attached when a shipment is processed or
// produced by a transformation.
type ProcessorData struct {
	ProcessorAlias         string    `json:"processorAlias"`
	DateProcessed          time.Time `json:"dateProcessed"`
	ProcessingType         string    `json:"processingType"`
	ProcessingLineID       string    `json:"processingLineId,omitempty"`
	ContaminationCheck     string    `json:"contaminationCheck,omitempty"`
	OutputBatchID          string    `json:"outputBatchId,omitempty"`
	ExpiryDate             time.Time `json:"expiryDate,omitempty"`
	DestinationDistributor string    `json:"destinationDistributorAlias,omitempty"`
}

// DistributorData is the stage payload attached at distribution.
type DistributorData struct {
	DistributorAlias    string         `json:"distributorAlias"`
	PickupDateTime      time.Time      `json:"pickupDateTime"`
	DeliveryDateTime    time.Time      `json:"deliveryDateTime,omitempty"`
	DistributionLineID  string         `json:"distributionLineId,omitempty"`
	TransportConditions string         `json:"transportConditions,omitempty"`
	DestinationRetailer string         `json:"destinationRetailerAlias,omitempty"`
	SensorLogs          []ColdChainLog `json:"sensorLogs,omitempty"`
}

// ColdChainLog is one immutable sensor reading recorded in transit.
type ColdChainLog struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Coordinates GeoPoint  `json:"coordinates"`
}

// RetailerData is the stage payload attached at receipt.
type RetailerData struct {
	RetailerAlias string    `json:"retailerAlias"`
	DateReceived  time.Time `json:"dateReceived"`
	StoreID       string    `json:"storeId,omitempty"`
	StoreLocation string    `json:"storeLocation,omitempty"`
	SellByDate    time.Time `json:"sellByDate,omitempty"`
}

// RecallInfo overlays recall state on a shipment without changing its status.
type RecallInfo struct {
	IsRecalled        bool      `json:"isRecalled"`
	RecallID          string    `json:"recallId,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	RecalledBy        string    `json:"recalledBy,omitempty"`
	RecalledAt        time.Time `json:"recalledAt,omitempty"`
	LinkedShipmentIDs []string  `json:"linkedShipmentIds"`
}

// Shipment is the unit of traceability.
type Shipment struct {
	ID                string  `json:"id"`
	ProductName       string  `json:"productName"`
	Description       string  `json:"description,omitempty"`
	Quantity          float64 `json:"quantity"`
	UnitOfMeasure     string  `json:"unitOfMeasure"`
	CurrentOwnerAlias string  `json:"currentOwnerAlias"`
	Status            Status  `json:"status"`
	IsArchived        bool    `json:"isArchived"`
	IsDerivedProduct  bool    `json:"isDerivedProduct"`

	InputShipmentIDs []string `json:"inputShipmentIds"`

	FarmerData           *FarmerData           `json:"farmerData,omitempty"`
	CertificationRecords []CertificationRecord `json:"certificationRecords"`
	ProcessorData        *ProcessorData        `json:"processorData,omitempty"`
	DistributorData      *DistributorData      `json:"distributorData,omitempty"`
	RetailerData         *RetailerData         `json:"retailerData,omitempty"`

	RecallInfo RecallInfo `json:"recallInfo"`

	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// HistoryEntry is one reconstructed step of a shipment's timeline. Actor
// attribution is derived from owner-field deltas between snapshots and is
// explicitly marked as inferred rather than a verified audit fact.
type HistoryEntry struct {
	TxID          string    `json:"txId"`
	Timestamp     time.Time `json:"timestamp"`
	ActorAlias    string    `json:"actorAlias"`
	ActorInferred bool      `json:"actorInferred"`
	Action        string    `json:"action"`
	Snapshot      Shipment  `json:"snapshot"`
}

// PublicDetails is the public provenance view of a shipment.
type PublicDetails struct {
	Shipment Shipment       `json:"shipment"`
	History  []HistoryEntry `json:"history"`
}

// NewProductSpec describes one output of a transformation.
type NewProductSpec struct {
	ID            string  `json:"id"`
	ProductName   string  `json:"productName"`
	Description   string  `json:"description,omitempty"`
	Quantity      float64 `json:"quantity"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
}

// RelatedShipment is an advisory recall-search candidate.
type RelatedShipment struct {
	Shipment       Shipment  `json:"shipment"`
	RelationReason string    `json:"relationReason"`
	LineID         string    `json:"lineId,omitempty"`
	EventTimestamp time.Time `json:"eventTimestamp"`
}

// ActionableShipment pairs a shipment with the caller's next permitted action.
type ActionableShipment struct {
	Shipment Shipment `json:"shipment"`
	Action   string   `json:"action"`
}

// Page is a cursor-paginated shipment listing.
type Page struct {
	Shipments    []Shipment `json:"shipments"`
	NextBookmark string     `json:"nextBookmark"`
	FetchedCount int        `json:"fetchedCount"`
}

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("shipment not found")
	ErrAlreadyExists     = errors.New("shipment already exists")
	ErrValidation        = errors.New("validation failed")
)
