// Package domain holds the GORM models backing the party data model:
// parties, their typed extensions, unified contacts, addresses, party-
// address links, enrichment snapshots, webhook events, and the two
// supplemental tracking/health entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PartyType distinguishes a person from an organization.
type PartyType string

const (
	PartyPerson       PartyType = "person"
	PartyOrganization PartyType = "organization"
)

// Party is the golden record of an individual or organization. tax_id is
// deliberately not unique: multiple rows may share a tax_id, representing
// evolving enrichment snapshots; the most recently updated enriched row
// is the preferred read.
type Party struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaxID          *string   `gorm:"column:tax_id;index"`
	FullName       string    `gorm:"column:full_name"`
	NormalizedName string    `gorm:"column:normalized_name"`
	Type           PartyType `gorm:"column:type"`
	Enriched       bool      `gorm:"column:enriched"`
	EnrichedAt     *time.Time `gorm:"column:enriched_at"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Party) TableName() string { return "core.parties" }

// PersonExtension carries person-specific attributes, one-to-one with a
// Party of type person.
type PersonExtension struct {
	PartyID    uuid.UUID  `gorm:"type:uuid;primaryKey;column:party_id"`
	BirthDate  *time.Time `gorm:"column:birth_date"`
	Sex        *string    `gorm:"column:sex"`
	MotherName *string    `gorm:"column:mother_name"`
	UpdatedAt  time.Time
}

func (PersonExtension) TableName() string { return "core.person_extensions" }

// OrganizationExtension carries organization-specific attributes,
// one-to-one with a Party of type organization.
type OrganizationExtension struct {
	PartyID        uuid.UUID  `gorm:"type:uuid;primaryKey;column:party_id"`
	FoundationDate *time.Time `gorm:"column:foundation_date"`
	Industry       *string    `gorm:"column:industry"`
	Size           *string    `gorm:"column:size"`
	UpdatedAt      time.Time
}

func (OrganizationExtension) TableName() string { return "core.organization_extensions" }

// ContactType enumerates the unified contact channels.
type ContactType string

const (
	ContactEmail    ContactType = "email"
	ContactPhone    ContactType = "phone"
	ContactWhatsApp ContactType = "whatsapp"
)

// Contact is the unified semantic record of an email/phone/whatsapp
// channel. (party_id, contact_type, value) is unique; value is always
// stored normalized (emails lower-cased and trimmed, phones digits-only).
type Contact struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	PartyID     uuid.UUID   `gorm:"type:uuid;column:party_id;index"`
	ContactType ContactType `gorm:"column:contact_type"`
	Value       string      `gorm:"column:value"`
	IsPrimary   bool        `gorm:"column:is_primary"`
	IsVerified  bool        `gorm:"column:is_verified"`
	IsWhatsApp  bool        `gorm:"column:is_whatsapp"`
	Source      string      `gorm:"column:source"`
	Confidence  float64     `gorm:"column:confidence"`
	ValidFrom   *time.Time  `gorm:"column:valid_from"`
	ValidTo     *time.Time  `gorm:"column:valid_to"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Contact) TableName() string { return "core.contacts" }

// Address is a physical address. PostalCode must be eight digits or nil;
// State must be two uppercase letters or nil.
type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Street     string    `gorm:"column:street"`
	Number     string    `gorm:"column:number"`
	Complement string    `gorm:"column:complement"`
	District   string    `gorm:"column:district"`
	City       string    `gorm:"column:city"`
	State      *string   `gorm:"column:state"`
	PostalCode *string   `gorm:"column:postal_code"`
	Latitude   *float64  `gorm:"column:latitude"`
	Longitude  *float64  `gorm:"column:longitude"`
	CreatedAt  time.Time
}

func (Address) TableName() string { return "core.addresses" }

// PartyAddressType enumerates the declared relationship an address has
// to a party.
type PartyAddressType string

const (
	AddressResidential  PartyAddressType = "residential"
	AddressCommercial   PartyAddressType = "commercial"
	AddressBilling      PartyAddressType = "billing"
	AddressFamilyMember PartyAddressType = "family_member"
	AddressOther        PartyAddressType = "other"
)

// PartyAddress links a Party to an Address with confidence scoring. At
// most one row per party has IsPrimary=true.
type PartyAddress struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey"`
	PartyID         uuid.UUID        `gorm:"type:uuid;column:party_id;index"`
	AddressID       uuid.UUID        `gorm:"type:uuid;column:address_id"`
	AddressType     PartyAddressType `gorm:"column:address_type"`
	IsPrimary       bool             `gorm:"column:is_primary"`
	IsCurrent       bool             `gorm:"column:is_current"`
	Verified        bool             `gorm:"column:verified"`
	ConfidenceScore float64          `gorm:"column:confidence_score"`
	Metadata        JSON             `gorm:"column:metadata"`
	CreatedAt       time.Time
}

func (PartyAddress) TableName() string { return "core.party_addresses" }

// EnrichmentSnapshot is a point-in-time captured payload from a deep-
// enrichment provider, associated with a party.
type EnrichmentSnapshot struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PartyID        uuid.UUID      `gorm:"type:uuid;column:party_id;index"`
	Provider       string         `gorm:"column:provider"`
	RawPayload     JSON           `gorm:"column:raw_payload"`
	NormalizedData JSON           `gorm:"column:normalized_data"`
	QualityScore   float64        `gorm:"column:quality_score"`
	EnrichedAt     time.Time      `gorm:"column:enriched_at"`
}

func (EnrichmentSnapshot) TableName() string { return "core.enrichment_snapshots" }
