package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contact_hub/internal/domain"
	"contact_hub/internal/repository"
	apperrors "contact_hub/pkg/errors"
	"contact_hub/pkg/logger"

	"github.com/google/uuid"
)

func TestResolveTwiceReturnsSameContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelWhatsApp, "+5490000", "")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelWhatsApp, "+5490000", "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("resolve returned different contacts: %s and %s", first.ID, second.ID)
	}
	if first.DisplayName != "WhatsApp User +5490000" {
		t.Fatalf("placeholder name = %q", first.DisplayName)
	}
	if got := len(env.store.AuditLogs()); got != 1 {
		t.Fatalf("audit entries = %d, want 1", got)
	}
	if env.notifier.count(EventContactCreated) != 1 {
		t.Fatal("expected exactly one contact.created event")
	}
}

func TestResolveNormalizesIdentifier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelInstagram, "  IG_User ", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelInstagram, "ig_user", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.ID != b.ID {
		t.Fatal("identifiers differing only in case and whitespace resolved to different contacts")
	}
	if *a.InstagramID != "ig_user" {
		t.Fatalf("stored identifier = %q", *a.InstagramID)
	}
}

func TestResolveConcurrentCreatesOneContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelMessenger, "psid-1", "")
			errs[i] = err
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got %s, want %s", i, ids[i], ids[0])
		}
	}
}

func TestResolveTenantsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.services.Identity.Resolve(ctx, "tenant-a", domain.ChannelWhatsApp, "+1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := env.services.Identity.Resolve(ctx, "tenant-b", domain.ChannelWhatsApp, "+1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("same identifier in different tenants must map to different contacts")
	}
}

func TestResolveInvalidArguments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		tenant     string
		channel    domain.Channel
		identifier string
	}{
		{"empty tenant", "", domain.ChannelWhatsApp, "+1"},
		{"empty identifier", testTenant, domain.ChannelWhatsApp, "   "},
		{"unsupported channel", testTenant, domain.Channel("telegram"), "123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.services.Identity.Resolve(ctx, tc.tenant, tc.channel, tc.identifier, "")
			if !errors.Is(err, apperrors.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

type staticNames struct {
	name string
	err  error
}

func (s staticNames) FetchDisplayName(context.Context, string, domain.Channel, string) (string, error) {
	return s.name, s.err
}

func TestResolveDisplayNameSources(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNop()

	cases := []struct {
		name    string
		hint    string
		fetcher NameFetcher
		want    string
	}{
		{"hint wins", "Maria", staticNames{name: "Fetched"}, "Maria"},
		{"fetcher", "", staticNames{name: "Fetched"}, "Fetched"},
		{"fetcher error falls back", "", staticNames{err: errors.New("boom")}, "Instagram User ig1"},
		{"placeholder", "", nil, "Instagram User ig1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			identity := NewIdentityService(env.repos.Contact, nil, tc.fetcher, nil, log)

			contact, err := identity.Resolve(ctx, testTenant, domain.ChannelInstagram, "ig1", tc.hint)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if contact.DisplayName != tc.want {
				t.Fatalf("display name = %q, want %q", contact.DisplayName, tc.want)
			}
		})
	}
}

// racingContacts имитирует проигранную гонку: Create натыкается на уникальный индекс
type racingContacts struct {
	repository.ContactRepository
	winner *domain.Contact
	misses int
}

func (r *racingContacts) FindActiveByIdentifier(ctx context.Context, tenantID string, channel domain.Channel, identifier string) (*domain.Contact, error) {
	if r.misses > 0 {
		r.misses--
		return nil, apperrors.NotFound("contact")
	}
	return r.winner.Clone(), nil
}

func (r *racingContacts) Create(context.Context, *domain.Contact) error {
	return apperrors.Conflict("contact identifier already exists")
}

func TestResolveRecoversFromCreateConflict(t *testing.T) {
	winner := &domain.Contact{ID: uuid.New(), TenantID: testTenant, Status: domain.ContactStatusActive, CreatedAt: time.Now()}
	repo := &racingContacts{winner: winner, misses: 1}
	identity := NewIdentityService(repo, nil, nil, nil, logger.NewNop())

	contact, err := identity.Resolve(context.Background(), testTenant, domain.ChannelWhatsApp, "+1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if contact.ID != winner.ID {
		t.Fatalf("contact = %s, want winner %s", contact.ID, winner.ID)
	}
}

func TestResolveConflictWithoutWinnerPropagates(t *testing.T) {
	repo := &racingContacts{misses: 2}
	identity := NewIdentityService(repo, nil, nil, nil, logger.NewNop())

	_, err := identity.Resolve(context.Background(), testTenant, domain.ChannelWhatsApp, "+1", "")
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestLookupDoesNotCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.services.Identity.Lookup(ctx, testTenant, domain.ChannelWhatsApp, "+1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	created, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelWhatsApp, "+1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	found, err := env.services.Identity.Lookup(ctx, testTenant, domain.ChannelWhatsApp, " +1 ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("lookup = %s, want %s", found.ID, created.ID)
	}
}

func TestGetContactHidesOtherTenants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelWhatsApp, "+1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := env.services.Identity.GetContact(ctx, "other", contact.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// gatedNames держит FetchDisplayName до закрытия gate и сообщает о каждом входе
type gatedNames struct {
	entered chan string
	gate    chan struct{}
}

func (g *gatedNames) FetchDisplayName(_ context.Context, tenantID string, _ domain.Channel, _ string) (string, error) {
	g.entered <- tenantID
	<-g.gate
	return "", nil
}

func TestResolveDelimiterLookalikesStayApart(t *testing.T) {
	env := newTestEnv(t)
	names := &gatedNames{entered: make(chan string, 2), gate: make(chan struct{})}
	identity := NewIdentityService(env.repos.Contact, nil, names, nil, logger.NewNop())

	type outcome struct {
		contact *domain.Contact
		err     error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)

	go func() {
		c, err := identity.Resolve(context.Background(), "acme|whatsapp", domain.ChannelWhatsApp, "x", "")
		first <- outcome{c, err}
	}()
	go func() {
		c, err := identity.Resolve(context.Background(), "acme", domain.ChannelWhatsApp, "whatsapp|x", "")
		second <- outcome{c, err}
	}()

	// Оба вызова должны дойти до собственного FetchDisplayName
	for i := 0; i < 2; i++ {
		select {
		case <-names.entered:
		case <-time.After(2 * time.Second):
			close(names.gate)
			t.Fatal("resolves for different tenants were collapsed into one call")
		}
	}
	close(names.gate)

	a, b := <-first, <-second
	if a.err != nil || b.err != nil {
		t.Fatalf("resolve errors: %v, %v", a.err, b.err)
	}
	if a.contact.TenantID != "acme|whatsapp" || b.contact.TenantID != "acme" {
		t.Fatalf("tenants = %q, %q", a.contact.TenantID, b.contact.TenantID)
	}
	if a.contact.ID == b.contact.ID {
		t.Fatal("different tenants share a contact")
	}
}

func TestResolveKeyEscapesParts(t *testing.T) {
	a := resolveKey("acme|whatsapp", domain.ChannelWhatsApp, "x")
	b := resolveKey("acme", domain.ChannelWhatsApp, "whatsapp|x")
	if a == b {
		t.Fatalf("keys collide: %s", a)
	}
}

func TestResolveIgnoresCallerCancellation(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	contact, err := env.services.Identity.Resolve(ctx, testTenant, domain.ChannelMessenger, "m-1", "")
	if err != nil {
		t.Fatalf("resolve with cancelled caller: %v", err)
	}
	stored, err := env.repos.Contact.GetByID(context.Background(), contact.ID)
	if err != nil || stored.TenantID != testTenant {
		t.Fatalf("stored = %v, %v", stored, err)
	}
}

func TestUpdateContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact := env.createContact(t, "Ana", mergeBase, map[domain.Channel]string{domain.ChannelWhatsApp: "+1"})
	contact.Attributes = map[string]any{"source": "ads", "vip": true}
	if err := env.repos.Contact.Update(ctx, contact); err != nil {
		t.Fatalf("seed attributes: %v", err)
	}

	updated, err := env.services.Identity.UpdateContact(ctx, testTenant, contact.ID, ContactUpdate{
		DisplayName:   domain.StringPtr("  Ana Gomez "),
		InstagramID:   domain.StringPtr(" Ana.IG "),
		WhatsAppPhone: domain.StringPtr(""),
		CRMPartnerID:  domain.StringPtr("res.partner,42"),
		Attributes:    map[string]any{"vip": nil, "segment": "b2b"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.DisplayName != "Ana Gomez" {
		t.Fatalf("display name = %q", updated.DisplayName)
	}
	if updated.InstagramID == nil || *updated.InstagramID != "ana.ig" || updated.WhatsAppPhone != nil {
		t.Fatalf("identifiers = %v", updated.Identifiers())
	}
	if updated.CRMPartnerID == nil || *updated.CRMPartnerID != "res.partner,42" {
		t.Fatalf("crm partner = %v", updated.CRMPartnerID)
	}
	if _, ok := updated.Attributes["vip"]; ok || updated.Attributes["segment"] != "b2b" || updated.Attributes["source"] != "ads" {
		t.Fatalf("attributes = %v", updated.Attributes)
	}

	found, err := env.services.Identity.Lookup(ctx, testTenant, domain.ChannelInstagram, "ana.ig")
	if err != nil || found.ID != contact.ID {
		t.Fatalf("lookup by new identifier = %v, %v", found, err)
	}
	if _, err := env.services.Identity.Lookup(ctx, testTenant, domain.ChannelWhatsApp, "+1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("cleared identifier still resolves: %v", err)
	}

	if env.notifier.count(EventContactUpdated) != 1 {
		t.Fatal("expected a contact.updated event")
	}
	logs := env.store.AuditLogs()
	if len(logs) != 1 || logs[0].EventType != domain.EventTypeContactUpdated {
		t.Fatalf("audit = %+v", logs)
	}
}

func TestUpdateContactRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createContact(t, "A", mergeBase, map[domain.Channel]string{domain.ChannelWhatsApp: "+1"})
	b := env.createContact(t, "B", mergeBase, map[domain.Channel]string{domain.ChannelWhatsApp: "+2"})

	if _, err := env.services.Identity.UpdateContact(ctx, testTenant, b.ID, ContactUpdate{WhatsAppPhone: domain.StringPtr("+1")}); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("taken identifier err = %v, want ErrConflict", err)
	}
	if _, err := env.services.Identity.UpdateContact(ctx, testTenant, b.ID, ContactUpdate{DisplayName: domain.StringPtr(" ")}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("empty name err = %v, want ErrInvalidArgument", err)
	}
	if _, err := env.services.Identity.UpdateContact(ctx, "tenant-2", a.ID, ContactUpdate{Notes: domain.StringPtr("x")}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("foreign tenant err = %v, want ErrNotFound", err)
	}

	stored, err := env.repos.Contact.GetByID(ctx, b.ID)
	if err != nil || *stored.WhatsAppPhone != "+2" || stored.DisplayName != "B" {
		t.Fatalf("rejected update changed contact: %+v %v", stored, err)
	}

	if _, err := env.services.Merge.Merge(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := env.services.Identity.UpdateContact(ctx, testTenant, b.ID, ContactUpdate{Notes: domain.StringPtr("x")}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("retired contact err = %v, want ErrInvalidArgument", err)
	}
}
