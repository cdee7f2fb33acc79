package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"foodtrace.org/internal/identity"
	"foodtrace.org/internal/ids"
	"foodtrace.org/internal/store"
)

const shipmentPrefix = "shipment/"

// Directory resolves caller aliases to registry records. Satisfied by
// *identity.Registry.
type Directory interface {
	GetByAlias(ctx context.Context, alias string) (identity.Info, error)
}

// Service enforces the shipment state machine on top of the document store.
// It is stateless: every operation resolves the caller, reads the documents
// it needs, and commits one atomic batch.
type Service struct {
	store store.Store
	dir   Directory
	now   func() time.Time
}

// NewService wires the lifecycle engine.
func NewService(s store.Store, dir Directory) *Service {
	return &Service{store: s, dir: dir, now: time.Now}
}

// NewShipment carries the fields accepted at creation time.
type NewShipment struct {
	ID            string
	ProductName   string
	Description   string
	Quantity      float64
	UnitOfMeasure string
	Farmer        FarmerData
}

// CreateShipment registers a new shipment owned by the calling farmer.
func (s *Service) CreateShipment(ctx context.Context, caller string, req NewShipment) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "farmer")
	if err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(req.ID, "id", maxStringInputLength); err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(req.ProductName, "productName", maxStringInputLength); err != nil {
		return Shipment{}, err
	}
	if err := validateOptionalString(req.Description, "description", maxDescriptionLength); err != nil {
		return Shipment{}, err
	}
	if err := validateRequiredString(req.UnitOfMeasure, "unitOfMeasure", maxStringInputLength); err != nil {
		return Shipment{}, err
	}
	if err := validateQuantity(req.Quantity); err != nil {
		return Shipment{}, err
	}
	if err := validateFarmerData(req.Farmer); err != nil {
		return Shipment{}, err
	}

	if _, err := s.store.Get(ctx, shipmentPrefix+req.ID); err == nil {
		return Shipment{}, fmt.Errorf("%w: %s", ErrAlreadyExists, req.ID)
	} else if err != store.ErrNotFound {
		return Shipment{}, err
	}

	now := s.now().UTC()
	fd := req.Farmer
	fd.FarmerAlias = actor.Alias
	sh := Shipment{
		ID:                req.ID,
		ProductName:       req.ProductName,
		Description:       req.Description,
		Quantity:          req.Quantity,
		UnitOfMeasure:     req.UnitOfMeasure,
		CurrentOwnerAlias: actor.Alias,
		Status:            StatusCreated,
		FarmerData:        &fd,
		CreatedAt:         now,
		LastUpdatedAt:     now,
	}
	normalizeShipment(&sh)

	if err := s.commit(ctx, []write{{shipment: sh, version: 0}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// SubmitForCertification moves a shipment the caller owns into
// PENDING_CERTIFICATION. Rejected shipments may be resubmitted.
func (s *Service) SubmitForCertification(ctx context.Context, caller, id string) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "farmer")
	if err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusCreated && sh.Status != StatusCertificationDenied {
		return Shipment{}, transitionErr(sh.Status, "SubmitForCertification")
	}
	if err := s.requireOwner(actor, sh); err != nil {
		return Shipment{}, err
	}

	sh.Status = StatusPendingCertification
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// RecordCertification appends a certifier decision. APPROVED certifies the
// shipment, REJECTED sends it to CERTIFICATION_REJECTED, PENDING records the
// visit without deciding.
func (s *Service) RecordCertification(ctx context.Context, caller, id string, rec CertificationRecord) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "certifier")
	if err != nil {
		return Shipment{}, err
	}
	switch rec.Decision {
	case CertPending, CertApproved, CertRejected:
	default:
		return Shipment{}, fmt.Errorf("%w: unknown certification decision %q", ErrValidation, rec.Decision)
	}
	if err := validateOptionalString(rec.Comments, "comments", maxDescriptionLength); err != nil {
		return Shipment{}, err
	}

	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusPendingCertification {
		return Shipment{}, transitionErr(sh.Status, "RecordCertification")
	}

	now := s.now().UTC()
	rec.CertifierAlias = actor.Alias
	rec.RecordedAt = now
	if rec.InspectionDate.IsZero() {
		rec.InspectionDate = now
	}
	sh.CertificationRecords = append(sh.CertificationRecords, rec)
	switch rec.Decision {
	case CertApproved:
		sh.Status = StatusCertified
	case CertRejected:
		sh.Status = StatusCertificationDenied
	}
	sh.LastUpdatedAt = now
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// ProcessShipment attaches processor data to a certified shipment and
// transfers ownership to the calling processor.
func (s *Service) ProcessShipment(ctx context.Context, caller, id string, pd ProcessorData) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "processor")
	if err != nil {
		return Shipment{}, err
	}
	if err := validateProcessorData(pd); err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusCertified {
		return Shipment{}, transitionErr(sh.Status, "ProcessShipment")
	}
	if err := s.requireDesignation(actor, sh.FarmerData.destinationProcessor()); err != nil {
		return Shipment{}, err
	}

	pd.ProcessorAlias = actor.Alias
	sh.ProcessorData = &pd
	sh.Status = StatusProcessed
	sh.CurrentOwnerAlias = actor.Alias
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// DistributeShipment attaches distributor data to a processed shipment and
// transfers ownership to the calling distributor.
func (s *Service) DistributeShipment(ctx context.Context, caller, id string, dd DistributorData) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "distributor")
	if err != nil {
		return Shipment{}, err
	}
	if err := validateDistributorData(dd); err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusProcessed {
		return Shipment{}, transitionErr(sh.Status, "DistributeShipment")
	}
	if err := s.requireDesignation(actor, sh.ProcessorData.destinationDistributor()); err != nil {
		return Shipment{}, err
	}

	dd.DistributorAlias = actor.Alias
	sh.DistributorData = &dd
	sh.Status = StatusDistributed
	sh.CurrentOwnerAlias = actor.Alias
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// ReceiveShipment attaches retailer data to a distributed shipment and marks
// it delivered.
func (s *Service) ReceiveShipment(ctx context.Context, caller, id string, rd RetailerData) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "retailer")
	if err != nil {
		return Shipment{}, err
	}
	if err := validateRetailerData(rd); err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusDistributed {
		return Shipment{}, transitionErr(sh.Status, "ReceiveShipment")
	}
	if err := s.requireDesignation(actor, sh.DistributorData.destinationRetailer()); err != nil {
		return Shipment{}, err
	}

	rd.RetailerAlias = actor.Alias
	sh.RetailerData = &rd
	sh.Status = StatusDelivered
	sh.CurrentOwnerAlias = actor.Alias
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// MarkConsumed closes out a delivered shipment the caller owns.
func (s *Service) MarkConsumed(ctx context.Context, caller, id string) (Shipment, error) {
	actor, err := s.requireRole(ctx, caller, "retailer")
	if err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.loadForUpdate(ctx, id, actor)
	if err != nil {
		return Shipment{}, err
	}
	if sh.Status != StatusDelivered {
		return Shipment{}, transitionErr(sh.Status, "MarkConsumed")
	}
	if err := s.requireOwner(actor, sh); err != nil {
		return Shipment{}, err
	}

	sh.Status = StatusConsumed
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// ArchiveShipment hides a shipment from listings without touching its status.
// Admin only; idempotent.
func (s *Service) ArchiveShipment(ctx context.Context, caller, id string) (Shipment, error) {
	return s.setArchived(ctx, caller, id, true)
}

// UnarchiveShipment restores an archived shipment. Admin only; idempotent.
func (s *Service) UnarchiveShipment(ctx context.Context, caller, id string) (Shipment, error) {
	return s.setArchived(ctx, caller, id, false)
}

func (s *Service) setArchived(ctx context.Context, caller, id string, archived bool) (Shipment, error) {
	if _, err := s.requireAdmin(ctx, caller); err != nil {
		return Shipment{}, err
	}
	sh, version, err := s.load(ctx, id)
	if err != nil {
		return Shipment{}, err
	}
	if sh.IsArchived == archived {
		return sh, nil
	}
	sh.IsArchived = archived
	sh.LastUpdatedAt = s.now().UTC()
	if err := s.commit(ctx, []write{{shipment: sh, version: version}}); err != nil {
		return Shipment{}, err
	}
	return sh, nil
}

// --- shared plumbing ---

type write struct {
	shipment Shipment
	version  uint64
}

func (s *Service) commit(ctx context.Context, writes []write) error {
	batch := make([]store.Write, 0, len(writes))
	for _, w := range writes {
		sh := w.shipment
		normalizeShipment(&sh)
		doc, err := json.Marshal(sh)
		if err != nil {
			return err
		}
		batch = append(batch, store.Write{
			Key:     shipmentPrefix + sh.ID,
			Value:   doc,
			Version: w.version,
		})
	}
	return s.store.Apply(ctx, ids.New(), batch)
}

func (s *Service) load(ctx context.Context, id string) (Shipment, uint64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Shipment{}, 0, fmt.Errorf("%w: shipment id is required", ErrValidation)
	}
	doc, err := s.store.Get(ctx, shipmentPrefix+id)
	if err == store.ErrNotFound {
		return Shipment{}, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Shipment{}, 0, err
	}
	var sh Shipment
	if err := json.Unmarshal(doc.Value, &sh); err != nil {
		return Shipment{}, 0, err
	}
	return sh, doc.Version, nil
}

// loadForUpdate loads a shipment for a lifecycle mutation. Archived shipments
// and recalled shipments reject non-admin mutation.
func (s *Service) loadForUpdate(ctx context.Context, id string, actor identity.Info) (Shipment, uint64, error) {
	sh, version, err := s.load(ctx, id)
	if err != nil {
		return Shipment{}, 0, err
	}
	if sh.IsArchived && !actor.IsAdmin {
		return Shipment{}, 0, fmt.Errorf("%w: shipment %s is archived", ErrInvalidTransition, id)
	}
	if sh.RecallInfo.IsRecalled && !actor.IsAdmin {
		return Shipment{}, 0, fmt.Errorf("%w: shipment %s is under recall %s", ErrInvalidTransition, id, sh.RecallInfo.RecallID)
	}
	return sh, version, nil
}

func (s *Service) actor(ctx context.Context, caller string) (identity.Info, error) {
	caller = strings.TrimSpace(strings.ToLower(caller))
	if caller == "" {
		return identity.Info{}, fmt.Errorf("%w: caller identity is required", ErrUnauthorized)
	}
	info, err := s.dir.GetByAlias(ctx, caller)
	if err != nil {
		return identity.Info{}, fmt.Errorf("%w: caller %q is not registered", ErrUnauthorized, caller)
	}
	return info, nil
}

// requireRole resolves the caller and checks the role. Admins bypass stage
// role checks so they can intervene in stuck flows.
func (s *Service) requireRole(ctx context.Context, caller, role string) (identity.Info, error) {
	actor, err := s.actor(ctx, caller)
	if err != nil {
		return identity.Info{}, err
	}
	if actor.IsAdmin || actor.HasRole(role) {
		return actor, nil
	}
	return identity.Info{}, fmt.Errorf("%w: role %q required", ErrUnauthorized, role)
}

func (s *Service) requireAdmin(ctx context.Context, caller string) (identity.Info, error) {
	actor, err := s.actor(ctx, caller)
	if err != nil {
		return identity.Info{}, err
	}
	if !actor.IsAdmin {
		return identity.Info{}, fmt.Errorf("%w: admin privileges required", ErrUnauthorized)
	}
	return actor, nil
}

func (s *Service) requireOwner(actor identity.Info, sh Shipment) error {
	if actor.IsAdmin || actor.Alias == sh.CurrentOwnerAlias {
		return nil
	}
	return fmt.Errorf("%w: caller does not own shipment %s", ErrUnauthorized, sh.ID)
}

// requireDesignation enforces the optional destination routing set by the
// previous stage.
func (s *Service) requireDesignation(actor identity.Info, designated string) error {
	if designated == "" || actor.IsAdmin || actor.Alias == designated {
		return nil
	}
	return fmt.Errorf("%w: shipment is designated to %q", ErrUnauthorized, designated)
}

func transitionErr(current Status, op string) error {
	return fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, op, current)
}

func (fd *FarmerData) destinationProcessor() string {
	if fd == nil {
		return ""
	}
	return fd.DestinationProcessor
}

func (pd *ProcessorData) destinationDistributor() string {
	if pd == nil {
		return ""
	}
	return pd.DestinationDistributor
}

func (dd *DistributorData) destinationRetailer() string {
	if dd == nil {
		return ""
	}
	return dd.DestinationRetailer
}
