// Package storage is the only component that writes parties, their typed
// extensions, contacts, party-address links, and enrichment snapshots.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/breaker"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/identity"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// normalizeContactValue canonicalizes a contact value before it is used as
// part of the (party_id, contact_type, value) conflict key, so an email
// e and any differently-cased/whitespace-padded spelling of it, or a
// phone number and its punctuated form, collapse onto the same row.
func normalizeContactValue(contactType domain.ContactType, value string) string {
	switch contactType {
	case domain.ContactEmail:
		return strings.ToLower(strings.TrimSpace(value))
	case domain.ContactPhone, domain.ContactWhatsApp:
		return identity.DigitsOnly(value)
	default:
		return value
	}
}

// Engine owns every write to the party data model, running each call
// through the shared circuit breaker so a failing datastore degrades to
// ServiceUnavailable instead of cascading.
type Engine struct {
	db      *gorm.DB
	breaker *breaker.CircuitBreaker
	logger  *zap.Logger
}

// New constructs a Party Storage Engine over db, guarded by cb.
func New(db *gorm.DB, cb *breaker.CircuitBreaker, logger *zap.Logger) *Engine {
	return &Engine{db: db, breaker: cb, logger: logger}
}

func (e *Engine) guarded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := e.breaker.Call(ctx, fn)
	if err == breaker.ErrOpen {
		return types.New(types.KindDatastoreFailure, op).WithCircuitOpen()
	}
	if err != nil {
		var typedErr *types.Error
		if errAs(err, &typedErr) {
			return typedErr
		}
		return types.New(types.KindDatastoreFailure, op).WithCause(err)
	}
	return nil
}

func errAs(err error, target **types.Error) bool {
	te, ok := err.(*types.Error)
	if ok {
		*target = te
	}
	return ok
}

// UpsertPartyInput is the identity and extension data the pipeline has
// assembled for one tax_id.
type UpsertPartyInput struct {
	TaxID          string
	FullName       string
	Type           domain.PartyType
	BirthDate      *time.Time
	Sex            *string
	MotherName     *string
	FoundationDate *time.Time
	Industry       *string
	OrgSize        *string
}

func normalizedName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}

// UpsertParty implements the Party upsert rule: look up by tax_id; if a
// row exists and is already enriched, update it in place; otherwise
// insert a new row. When multiple rows share the tax_id, the most
// recently updated one is the target.
func (e *Engine) UpsertParty(ctx context.Context, in UpsertPartyInput) (uuid.UUID, error) {
	var partyID uuid.UUID

	err := e.guarded(ctx, "storage.UpsertParty", func(ctx context.Context) error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing domain.Party
			err := tx.Where("tax_id = ? AND enriched = ?", in.TaxID, true).
				Order("updated_at DESC").
				First(&existing).Error

			now := time.Now()
			norm := normalizedName(in.FullName)

			switch {
			case err == nil:
				if in.FullName != "" {
					existing.FullName = in.FullName
					existing.NormalizedName = norm
				}
				existing.Enriched = true
				existing.EnrichedAt = &now
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				partyID = existing.ID

			case errorsIsRecordNotFound(err):
				p := domain.Party{
					ID:             uuid.New(),
					TaxID:          ptrString(in.TaxID),
					FullName:       in.FullName,
					NormalizedName: norm,
					Type:           in.Type,
					Enriched:       true,
					EnrichedAt:     &now,
				}
				if err := tx.Create(&p).Error; err != nil {
					return err
				}
				partyID = p.ID

			default:
				return err
			}

			return e.upsertExtensionLocked(tx, partyID, in)
		})
	})
	return partyID, err
}

func (e *Engine) upsertExtensionLocked(tx *gorm.DB, partyID uuid.UUID, in UpsertPartyInput) error {
	switch in.Type {
	case domain.PartyPerson:
		ext := domain.PersonExtension{PartyID: partyID, BirthDate: in.BirthDate, Sex: in.Sex, MotherName: in.MotherName, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"birth_date", "sex", "mother_name", "updated_at"}),
		}).Create(&ext).Error
	case domain.PartyOrganization:
		ext := domain.OrganizationExtension{PartyID: partyID, FoundationDate: in.FoundationDate, Industry: in.Industry, Size: in.OrgSize, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"foundation_date", "industry", "size", "updated_at"}),
		}).Create(&ext).Error
	}
	return nil
}

// UpsertContact inserts contact, ignoring the operation on
// (party_id, contact_type, value) conflict so retries are safe.
// isFirst marks the first element of the provider's contact array,
// which carries is_primary=true.
func (e *Engine) UpsertContact(ctx context.Context, partyID uuid.UUID, contactType domain.ContactType, value string, isFirst bool, source string) error {
	return e.guarded(ctx, "storage.UpsertContact", func(ctx context.Context) error {
		c := domain.Contact{
			ID:          uuid.New(),
			PartyID:     partyID,
			ContactType: contactType,
			Value:       normalizeContactValue(contactType, value),
			IsPrimary:   isFirst,
			Source:      source,
			Confidence:  1.0,
		}
		return e.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_id"}, {Name: "contact_type"}, {Name: "value"}},
			DoNothing: true,
		}).Create(&c).Error
	})
}

// AddressPlacement describes where an address appeared in the provider
// response, driving the address confidence table below.
type AddressPlacement struct {
	Position             int
	DeclaredRelationship string // "", "spouse", "parent", or any other value
}

// addressConfidence returns (addressType, isPrimary, confidence) per the
// position/relationship confidence table.
func addressConfidence(p AddressPlacement) (domain.PartyAddressType, bool, float64) {
	switch strings.ToLower(p.DeclaredRelationship) {
	case "":
		if p.Position == 0 {
			return domain.AddressResidential, true, 0.90
		}
		return domain.AddressResidential, false, 0.75
	case "spouse":
		return domain.AddressFamilyMember, false, 0.50
	case "parent":
		return domain.AddressFamilyMember, false, 0.40
	default:
		return domain.AddressFamilyMember, false, 0.45
	}
}

// UpsertAddress inserts an address row and links it to partyID via
// party_addresses, assigning confidence per AddressPlacement. Re-running
// for the same (party, address) must not duplicate the link or flip
// is_primary to false.
func (e *Engine) UpsertAddress(ctx context.Context, partyID uuid.UUID, addr domain.Address, placement AddressPlacement) error {
	return e.guarded(ctx, "storage.UpsertAddress", func(ctx context.Context) error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			addr = sanitizeAddress(addr, e.logger)
			addr.ID = uuid.New()
			if err := tx.Create(&addr).Error; err != nil {
				return err
			}

			addrType, isPrimary, confidence := addressConfidence(placement)

			var link domain.PartyAddress
			err := tx.Where("party_id = ? AND address_id = ?", partyID, addr.ID).First(&link).Error
			if err == nil {
				// Already linked (shouldn't happen with a fresh address id,
				// but keep the invariant explicit): never flip is_primary
				// to false on a re-run.
				if isPrimary {
					link.IsPrimary = true
				}
				return tx.Save(&link).Error
			}
			if !errorsIsRecordNotFound(err) {
				return err
			}

			link = domain.PartyAddress{
				ID:              uuid.New(),
				PartyID:         partyID,
				AddressID:       addr.ID,
				AddressType:     addrType,
				IsPrimary:       isPrimary,
				IsCurrent:       true,
				ConfidenceScore: confidence,
			}
			return tx.Create(&link).Error
		})
	})
}

var statePattern = func(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

var postalCodeDigits = func(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sanitizeAddress enforces the eight-digit postal code invariant and the
// two-uppercase-letter state invariant, nulling and warning on violation
// rather than rejecting the whole address.
func sanitizeAddress(addr domain.Address, logger *zap.Logger) domain.Address {
	if addr.State != nil {
		upper := strings.ToUpper(strings.TrimSpace(*addr.State))
		if statePattern(upper) {
			addr.State = &upper
		} else {
			if logger != nil {
				logger.Warn("address state failed validation, storing null", zap.String("state", *addr.State))
			}
			addr.State = nil
		}
	}
	if addr.PostalCode != nil {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, *addr.PostalCode)
		if postalCodeDigits(digits) {
			addr.PostalCode = &digits
		} else {
			if logger != nil {
				logger.Warn("address postal code failed validation, storing null", zap.String("postal_code", *addr.PostalCode))
			}
			addr.PostalCode = nil
		}
	}
	return addr
}

// confidenceEnumScore maps the provider's coarse confidence enum to a
// numeric quality_score for an enrichment snapshot.
var confidenceEnumScore = map[string]float64{
	"low":    0.3,
	"medium": 0.6,
	"high":   0.9,
}

// InsertEnrichmentSnapshot records one provider response against a
// party. normalizedData is stored exactly as given; financial fields are
// not regrouped into a "financials" sub-object.
func (e *Engine) InsertEnrichmentSnapshot(ctx context.Context, partyID uuid.UUID, provider string, rawPayload, normalizedData []byte, confidenceEnum string) error {
	score, ok := confidenceEnumScore[strings.ToLower(confidenceEnum)]
	if !ok {
		score = 0.5
	}
	return e.guarded(ctx, "storage.InsertEnrichmentSnapshot", func(ctx context.Context) error {
		snap := domain.EnrichmentSnapshot{
			ID:             uuid.New(),
			PartyID:        partyID,
			Provider:       provider,
			RawPayload:     domain.JSON(rawPayload),
			NormalizedData: domain.JSON(normalizedData),
			QualityScore:   score,
			EnrichedAt:     time.Now(),
		}
		return e.db.WithContext(ctx).Create(&snap).Error
	})
}

// LookupByContact implements tier 2 of CPF resolution: joins contacts
// with parties and the latest enrichment snapshot, filtered on a
// matching normalized phone/whatsapp or email value for an already
// enriched party.
type ContactLookupResult struct {
	PartyID        uuid.UUID
	TaxID          string
	NormalizedData []byte
}

func (e *Engine) LookupByContact(ctx context.Context, phoneDigits, email string) (*ContactLookupResult, error) {
	var result ContactLookupResult
	var found bool

	err := e.guarded(ctx, "storage.LookupByContact", func(ctx context.Context) error {
		type row struct {
			PartyID        uuid.UUID
			TaxID          *string
			NormalizedData domain.JSON
		}
		var r row

		q := e.db.WithContext(ctx).
			Table("core.contacts c").
			Joins("JOIN core.parties p ON p.id = c.party_id").
			Joins(`LEFT JOIN LATERAL (
				SELECT normalized_data FROM core.enrichment_snapshots s
				WHERE s.party_id = p.id ORDER BY s.enriched_at DESC LIMIT 1
			) es ON true`).
			Where("p.enriched = ?", true).
			Order("p.updated_at DESC").
			Limit(1)

		switch {
		case phoneDigits != "":
			q = q.Where("c.value = ? AND c.contact_type IN ?", phoneDigits, []domain.ContactType{domain.ContactPhone, domain.ContactWhatsApp})
		case email != "":
			q = q.Where("c.value = ? AND c.contact_type = ?", email, domain.ContactEmail)
		default:
			return types.New(types.KindValidation, "storage.LookupByContact requires a phone or email")
		}

		err := q.Select("p.id as party_id, p.tax_id, es.normalized_data").Scan(&r).Error
		if err != nil {
			return err
		}
		if r.PartyID == uuid.Nil {
			return nil
		}
		found = true
		result = ContactLookupResult{PartyID: r.PartyID}
		if r.TaxID != nil {
			result.TaxID = *r.TaxID
		}
		result.NormalizedData = r.NormalizedData
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &result, nil
}

func ptrString(s string) *string { return &s }

func errorsIsRecordNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}
