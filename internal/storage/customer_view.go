package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
)

// AddressEntry pairs a physical address with the relationship and
// primacy declared by its party_addresses link, for the read-only
// customer view.
type AddressEntry struct {
	domain.Address
	Type      domain.PartyAddressType
	IsPrimary bool
}

// CustomerView is the canonical read projection of a party: identity,
// typed extension fields folded out, every known contact and address.
type CustomerView struct {
	domain.Party
	Contacts  []domain.Contact
	Addresses []AddressEntry
}

// GetCustomerByID loads the canonical customer view for partyID. Returns
// nil, nil when no such party exists.
func (e *Engine) GetCustomerByID(ctx context.Context, partyID uuid.UUID) (*CustomerView, error) {
	return e.loadCustomerView(ctx, func(tx *gorm.DB, p *domain.Party) error {
		return tx.First(p, "id = ?", partyID).Error
	})
}

// GetCustomerByTaxID loads the most recently updated enriched party for
// taxID. Returns nil, nil when no such party exists.
func (e *Engine) GetCustomerByTaxID(ctx context.Context, taxID string) (*CustomerView, error) {
	return e.loadCustomerView(ctx, func(tx *gorm.DB, p *domain.Party) error {
		return tx.Where("tax_id = ? AND enriched = ?", taxID, true).Order("updated_at DESC").First(p).Error
	})
}

func (e *Engine) loadCustomerView(ctx context.Context, findParty func(tx *gorm.DB, p *domain.Party) error) (*CustomerView, error) {
	var view *CustomerView

	err := e.guarded(ctx, "storage.GetCustomer", func(ctx context.Context) error {
		tx := e.db.WithContext(ctx)

		var party domain.Party
		if err := findParty(tx, &party); err != nil {
			if errorsIsRecordNotFound(err) {
				return nil
			}
			return err
		}

		var contacts []domain.Contact
		if err := tx.Where("party_id = ?", party.ID).Find(&contacts).Error; err != nil {
			return err
		}

		type addressRow struct {
			domain.Address
			AddressType domain.PartyAddressType
			IsPrimary   bool
		}
		var rows []addressRow
		err := tx.Table("core.addresses a").
			Select("a.*, pa.address_type, pa.is_primary").
			Joins("JOIN core.party_addresses pa ON pa.address_id = a.id").
			Where("pa.party_id = ?", party.ID).
			Order("pa.is_primary DESC, pa.confidence_score DESC").
			Scan(&rows).Error
		if err != nil {
			return err
		}

		addresses := make([]AddressEntry, 0, len(rows))
		for _, r := range rows {
			addresses = append(addresses, AddressEntry{Address: r.Address, Type: r.AddressType, IsPrimary: r.IsPrimary})
		}

		view = &CustomerView{Party: party, Contacts: contacts, Addresses: addresses}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ErrNoQuery is returned by lookups that received no usable search
// criteria.
var ErrNoQuery = types.New(types.KindValidation, "no search criteria supplied")
