package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/cache"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/domain"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/identity"
	"github.com/MbInteligen/mbras-c2s-enrichment/internal/storage"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/crm"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/deepenrich"
	"github.com/MbInteligen/mbras-c2s-enrichment/providers/taxid"
)

// interCallDelay is the mandated pause between successive deep-enrichment
// calls so the pipeline never hammers the provider when resolving more
// than one tax_id for a lead.
const interCallDelay = 3 * time.Second

// DescriptionMaxLength is the default clamp applied to the composed CRM
// message, overridable via C2S_DESCRIPTION_MAX_LENGTH.
const DescriptionMaxLength = 5000

// Input is the request that kicks off one enrichment run.
type Input struct {
	LeadID       string
	CustomerName string
	Phone        string
	Email        string
}

// Result reports the outcome the caller (the webhook ingestor, or a
// synchronous handler) needs in order to transition the job's status.
type Result struct {
	Dispatched bool
	Message    string
	Err        error
}

// Pipeline runs identifier validation, tiered CPF resolution, deep
// enrichment, message composition, CRM dispatch, and persistence, strictly
// sequentially for one lead.
type Pipeline struct {
	caches *cache.Manager
	store  *storage.Engine
	taxID  *taxid.Client
	deep   *deepenrich.Client
	crmc   *crm.Client
	maxLen int
	logger *zap.Logger
}

// Config bundles the pipeline's dependencies.
type Config struct {
	Caches            *cache.Manager
	Store             *storage.Engine
	TaxIDResolver     *taxid.Client
	DeepEnrichment    *deepenrich.Client
	CRM               *crm.Client
	DescriptionMaxLen int
	Logger            *zap.Logger
}

// New constructs a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	maxLen := cfg.DescriptionMaxLen
	if maxLen <= 0 {
		maxLen = DescriptionMaxLength
	}
	return &Pipeline{
		caches: cfg.Caches,
		store:  cfg.Store,
		taxID:  cfg.TaxIDResolver,
		deep:   cfg.DeepEnrichment,
		crmc:   cfg.CRM,
		maxLen: maxLen,
		logger: cfg.Logger,
	}
}

// Run executes the full pipeline for one lead: validate, resolve,
// enrich, compose, dispatch, persist. Steps after validation are
// strictly sequential, matching the concurrency model's ordering
// guarantee for a single job.
func (p *Pipeline) Run(ctx context.Context, in Input) Result {
	email, hasEmail := identity.ValidateEmail(in.Email)
	phoneDigits, hasPhone := identity.ValidatePhone(in.Phone)

	if !hasEmail && !hasPhone {
		return Result{Err: fmt.Errorf("no valid identifier for lead %s", in.LeadID)}
	}

	msg, tier1Outcome := p.tier1(phoneDigits, hasPhone, email, hasEmail)
	switch tier1Outcome {
	case tier1Hit:
		return p.dispatchAndPersist(ctx, in, msg, nil)
	case tier1NegativeHit:
		// A negative contact_to_party_cache entry means this contact was
		// already resolved to no party; skip tier2's datastore query
		// entirely and go straight to the external resolver.
	default:
		if msg, ok := p.tier2(ctx, phoneDigits, hasPhone, email, hasEmail); ok {
			return p.dispatchAndPersist(ctx, in, msg, nil)
		}
	}

	taxIDs, samePerson, twoIdentifiers := p.tier3(ctx, phoneDigits, hasPhone, email, hasEmail)
	if len(taxIDs) == 0 {
		p.cacheNegativeContactKey(phoneDigits, hasPhone, email, hasEmail)
		return Result{Err: fmt.Errorf("no tax id resolved for lead %s", in.LeadID)}
	}

	profiles, err := p.enrichAll(ctx, taxIDs)
	if err != nil {
		return Result{Err: err}
	}

	message := ComposeMessage(profiles, samePerson, twoIdentifiers, p.maxLen)

	p.cacheContactKey(phoneDigits, hasPhone, email, hasEmail, message)

	return p.dispatchAndPersist(ctx, in, message, profiles)
}

func (p *Pipeline) contactCacheKey(phoneDigits string, hasPhone bool, email string, hasEmail bool) (string, bool) {
	switch {
	case hasPhone:
		return "phone:" + phoneDigits, true
	case hasEmail:
		return "email:" + email, true
	default:
		return "", false
	}
}

// tier1Outcome distinguishes the three things a contact_to_party_cache
// lookup can report: a positive hit (use the cached message directly), a
// negative hit (this contact was already resolved to no party; skip
// straight to tier3 without re-querying the datastore), or a miss (fall
// through to tier2 as usual).
type tier1Outcome int

const (
	tier1Miss tier1Outcome = iota
	tier1Hit
	tier1NegativeHit
)

// tier1 checks the in-memory contact_to_party_cache.
func (p *Pipeline) tier1(phoneDigits string, hasPhone bool, email string, hasEmail bool) (string, tier1Outcome) {
	key, ok := p.contactCacheKey(phoneDigits, hasPhone, email, hasEmail)
	if !ok || p.caches == nil {
		return "", tier1Miss
	}
	raw, hit := p.caches.ContactToParty.Get(key)
	if !hit {
		return "", tier1Miss
	}
	if len(raw) == 0 {
		return "", tier1NegativeHit
	}
	return string(raw), tier1Hit
}

// tier2 queries the local store for an already-enriched party matching
// the phone or email. A hit is composed into a message exactly as a
// fresh enrichment would be, then cached for future tier1 lookups.
func (p *Pipeline) tier2(ctx context.Context, phoneDigits string, hasPhone bool, email string, hasEmail bool) (string, bool) {
	if p.store == nil {
		return "", false
	}
	result, err := p.store.LookupByContact(ctx, valueOrEmpty(hasPhone, phoneDigits), valueOrEmpty(hasEmail, email))
	if err != nil || result == nil || len(result.NormalizedData) == 0 {
		return "", false
	}

	var profile EnrichedProfile
	if err := json.Unmarshal(result.NormalizedData, &profile); err != nil {
		if p.logger != nil {
			p.logger.Warn("tier2 hit carried unparseable normalized data", zap.Error(err))
		}
		return "", false
	}
	if profile.TaxID == "" {
		profile.TaxID = result.TaxID
	}

	message := ComposeMessage([]EnrichedProfile{profile}, false, false, p.maxLen)
	if key, ok := p.contactCacheKey(phoneDigits, hasPhone, email, hasEmail); ok && p.caches != nil {
		p.caches.ContactToParty.Put(key, []byte(message))
	}
	return message, message != ""
}

func valueOrEmpty(use bool, v string) string {
	if use {
		return v
	}
	return ""
}

// tier3 performs the external tax-ID resolver lookup by phone and by
// email in parallel, and applies same-person reconciliation.
func (p *Pipeline) tier3(ctx context.Context, phoneDigits string, hasPhone bool, email string, hasEmail bool) (taxIDs []string, samePerson, twoIdentifiers bool) {
	type lookupResult struct {
		taxID string
		err   error
	}

	phoneCh := make(chan lookupResult, 1)
	emailCh := make(chan lookupResult, 1)

	go func() {
		if !hasPhone || p.taxID == nil {
			phoneCh <- lookupResult{}
			return
		}
		var r lookupResult
		r.taxID, r.err = p.taxID.ByPhone(ctx, phoneDigits)
		phoneCh <- r
	}()

	go func() {
		if !hasEmail || p.taxID == nil {
			emailCh <- lookupResult{}
			return
		}
		var r lookupResult
		r.taxID, r.err = p.taxID.ByEmail(ctx, email)
		emailCh <- r
	}()

	phoneRes := <-phoneCh
	emailRes := <-emailCh

	phoneTaxID := strings.TrimSpace(phoneRes.taxID)
	emailTaxID := strings.TrimSpace(emailRes.taxID)

	switch {
	case phoneTaxID != "" && emailTaxID != "":
		if phoneTaxID == emailTaxID {
			return []string{phoneTaxID}, true, false
		}
		return []string{phoneTaxID, emailTaxID}, false, true
	case phoneTaxID != "":
		return []string{phoneTaxID}, false, false
	case emailTaxID != "":
		return []string{emailTaxID}, false, false
	default:
		return nil, false, false
	}
}

// enrichAll calls the deep-enrichment provider for each tax_id in
// sequence, pacing successive calls with the mandated inter-call delay
// and applying the canonical transformations.
func (p *Pipeline) enrichAll(ctx context.Context, taxIDs []string) ([]EnrichedProfile, error) {
	profiles := make([]EnrichedProfile, 0, len(taxIDs))

	for i, taxID := range taxIDs {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interCallDelay):
			}
		}

		profile, err := p.enrichOne(ctx, taxID)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (p *Pipeline) enrichOne(ctx context.Context, taxID string) (EnrichedProfile, error) {
	cacheKey := "deepenrich:" + taxID

	if p.caches != nil {
		if raw, hit := p.caches.ProviderResponse.Get(cacheKey); hit {
			return p.transformPayload(taxID, rawToPayload(raw)), nil
		}
	}

	payload, err := p.deep.Lookup(ctx, taxID)
	if err != nil {
		return EnrichedProfile{}, err
	}

	if p.caches != nil && payload != nil {
		p.caches.ProviderResponse.Put(cacheKey, payload.Raw)
	}

	return p.transformPayload(taxID, payload), nil
}

func rawToPayload(raw []byte) *deepenrich.Payload {
	payload := &deepenrich.Payload{}
	_ = json.Unmarshal(raw, payload)
	payload.Raw = raw
	return payload
}

func (p *Pipeline) transformPayload(taxID string, payload *deepenrich.Payload) EnrichedProfile {
	if payload == nil {
		return EnrichedProfile{TaxID: taxID}
	}

	profile := EnrichedProfile{
		TaxID:     taxID,
		Name:      payload.Basic.Name,
		BirthDate: transformDate(payload.Basic.BirthDate),
		Sex:       transformSex(payload.Basic.Sex),
		Addresses: payload.Addresses,
		Contacts:  payload.Contacts,
		Companies: payload.Companies,
		Raw:       payload.Raw,
	}

	if payload.Economic.ReportedIncome != "" {
		if amount, err := transformIncome(payload.Economic.ReportedIncome); err == nil {
			profile.ReportedIncome = amount.String()
		}
	}
	if score, ok := transformRisk(payload.Economic.RiskLabel); ok {
		profile.RiskScore = score
		profile.RiskKnown = true
	}

	return profile
}

func (p *Pipeline) cacheContactKey(phoneDigits string, hasPhone bool, email string, hasEmail bool, message string) {
	if p.caches == nil {
		return
	}
	if key, ok := p.contactCacheKey(phoneDigits, hasPhone, email, hasEmail); ok {
		p.caches.ContactToParty.Put(key, []byte(message))
	}
}

// cacheNegativeContactKey records that this contact resolved to no party,
// using the same cache and TTL as a positive hit. An empty stored value
// is what tier1 recognizes as a negative hit.
func (p *Pipeline) cacheNegativeContactKey(phoneDigits string, hasPhone bool, email string, hasEmail bool) {
	if p.caches == nil {
		return
	}
	if key, ok := p.contactCacheKey(phoneDigits, hasPhone, email, hasEmail); ok {
		p.caches.ContactToParty.Put(key, []byte{})
	}
}

// dispatchAndPersist posts the message to the CRM and stores whatever
// enrichment profiles were produced, independently of dispatch success.
func (p *Pipeline) dispatchAndPersist(ctx context.Context, in Input, message string, profiles []EnrichedProfile) Result {
	var dispatchErr error
	if p.crmc != nil {
		dispatchErr = p.crmc.CreateMessage(ctx, in.LeadID, message)
	}

	if p.store != nil {
		for _, profile := range profiles {
			p.persistProfile(ctx, in.LeadID, profile)
		}
	}

	if dispatchErr != nil {
		return Result{Dispatched: false, Message: message, Err: dispatchErr}
	}
	return Result{Dispatched: true, Message: message}
}

func (p *Pipeline) persistProfile(ctx context.Context, leadID string, profile EnrichedProfile) {
	taxID := profile.TaxID
	partyID, err := p.store.UpsertParty(ctx, storage.UpsertPartyInput{
		TaxID:    taxID,
		FullName: profile.Name,
		Type:     domain.PartyPerson,
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("persist party failed", zap.String("lead_id", leadID), zap.String("tax_id", taxID), zap.Error(err))
		}
		return
	}

	for i, contact := range profile.Contacts {
		contactType := domain.ContactType(strings.ToLower(contact.Type))
		if err := p.store.UpsertContact(ctx, partyID, contactType, contact.Value, i == 0, "deepenrich"); err != nil && p.logger != nil {
			p.logger.Warn("persist contact failed", zap.String("lead_id", leadID), zap.Error(err))
		}
	}

	for i, addr := range profile.Addresses {
		domainAddr := domain.Address{
			Street:     addr.Street,
			Number:     addr.Number,
			District:   addr.District,
			City:       addr.City,
			State:      ptr(addr.State),
			PostalCode: ptr(addr.PostalCode),
		}
		placement := storage.AddressPlacement{Position: i, DeclaredRelationship: addr.DeclaredRelationship}
		if err := p.store.UpsertAddress(ctx, partyID, domainAddr, placement); err != nil && p.logger != nil {
			p.logger.Warn("persist address failed", zap.String("lead_id", leadID), zap.Error(err))
		}
	}

	normalized, _ := normalizedSnapshot(profile)
	if err := p.store.InsertEnrichmentSnapshot(ctx, partyID, "deepenrich", profile.Raw, normalized, "medium"); err != nil && p.logger != nil {
		p.logger.Warn("persist enrichment snapshot failed", zap.String("lead_id", leadID), zap.Error(err))
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalizedSnapshot serializes the full profile so a later tier2 hit can
// unmarshal it back and compose a message identically to a fresh
// enrichment, rather than replaying a pre-formatted blob.
func normalizedSnapshot(profile EnrichedProfile) ([]byte, error) {
	return json.Marshal(profile)
}
