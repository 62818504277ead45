package usecase_test

import (
	"fmt"
	"strings"
	"time"

	"github.com/goldstream/goldstream/internal/domain"
)

// In-memory fakes backing the service tests. They implement the repository
// ports with just enough behavior for the flows under test.

type memUsers struct {
	byID      map[int64]domain.User
	nextID    int64
	ancestors []domain.User
	recounted []string
}

func newMemUsers() *memUsers { return &memUsers{byID: map[int64]domain.User{}} }

func (m *memUsers) add(u domain.User) domain.User {
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.byID[u.ID] = u
	return u
}

func (m *memUsers) Create(_ domain.Context, u domain.User) (int64, error) {
	return m.add(u).ID, nil
}

func (m *memUsers) Get(_ domain.Context, id int64) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByEmail(_ domain.Context, email string) (domain.User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) GetByReferCode(_ domain.Context, code string) (domain.User, error) {
	for _, u := range m.byID {
		if u.ReferCode == code {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) GetByResetToken(_ domain.Context, token string) (domain.User, error) {
	for _, u := range m.byID {
		if u.ResetToken != nil && *u.ResetToken == token {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memUsers) EmailExists(_ domain.Context, email string) (bool, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfile(_ domain.Context, u domain.User) error {
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) UpdatePassword(_ domain.Context, id int64, hash string) error {
	u := m.byID[id]
	u.Password = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) UpdateResetToken(_ domain.Context, id int64, token *string, validTill *time.Time) error {
	u := m.byID[id]
	u.ResetToken = token
	u.ResetTokenValid = validTill
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetReferer(_ domain.Context, id int64, referCode string) error {
	u := m.byID[id]
	u.Referer = &referCode
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetCurrency(_ domain.Context, id int64, currencyID int64) error {
	u := m.byID[id]
	u.CurrencyID = currencyID
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetLanguage(_ domain.Context, id int64, language string) error {
	u := m.byID[id]
	u.Language = language
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetActive(_ domain.Context, id int64, active bool) error {
	u := m.byID[id]
	u.IsActive = active
	m.byID[id] = u
	return nil
}

func (m *memUsers) SetVIP(_ domain.Context, id int64, vip bool) error {
	u := m.byID[id]
	u.IsVIP = vip
	m.byID[id] = u
	return nil
}

func (m *memUsers) RecountRefs(_ domain.Context, referCode string) error {
	m.recounted = append(m.recounted, referCode)
	return nil
}

func (m *memUsers) Community(_ domain.Context, _ int64, _ int, _ domain.Page) ([]domain.CommunityMember, int, error) {
	return nil, 0, nil
}

func (m *memUsers) Ancestors(_ domain.Context, _ int64, maxLevel int) ([]domain.User, error) {
	anc := m.ancestors
	if len(anc) > maxLevel {
		anc = anc[:maxLevel]
	}
	// Resolve through byID so later mutations (e.g. SetActive) are visible,
	// matching what a real repository would return.
	out := make([]domain.User, 0, len(anc))
	for _, a := range anc {
		if cur, ok := m.byID[a.ID]; ok {
			out = append(out, cur)
		} else {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memUsers) List(_ domain.Context, _ domain.UserFilter, _ domain.Page) ([]domain.User, int, error) {
	out := make([]domain.User, 0, len(m.byID))
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

type memDreams struct {
	byID       map[int64]domain.Dream
	nextID     int64
	candidates []domain.DreamCandidate
}

func newMemDreams() *memDreams { return &memDreams{byID: map[int64]domain.Dream{}} }

func (m *memDreams) add(d domain.Dream) domain.Dream {
	if d.ID == 0 {
		m.nextID++
		d.ID = m.nextID
	} else if d.ID > m.nextID {
		m.nextID = d.ID
	}
	m.byID[d.ID] = d
	return d
}

func (m *memDreams) Create(_ domain.Context, d domain.Dream) (int64, error) {
	return m.add(d).ID, nil
}

func (m *memDreams) Get(_ domain.Context, id int64) (domain.Dream, error) {
	d, ok := m.byID[id]
	if !ok {
		return domain.Dream{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDreams) Update(_ domain.Context, d domain.Dream) error {
	m.byID[d.ID] = d
	return nil
}

func (m *memDreams) Delete(_ domain.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func (m *memDreams) UpdateStatus(_ domain.Context, id int64, status domain.DreamStatus) error {
	d := m.byID[id]
	d.Status = status
	m.byID[id] = d
	return nil
}

func (m *memDreams) PromoteByUser(_ domain.Context, userID int64, from, to domain.DreamStatus) error {
	for id, d := range m.byID {
		if d.UserID == userID && d.Status == from {
			d.Status = to
			m.byID[id] = d
		}
	}
	return nil
}

func (m *memDreams) SetRefDonations(_ domain.Context, id int64, donationIDs []int64) error {
	d := m.byID[id]
	d.RefDonations = donationIDs
	m.byID[id] = d
	return nil
}

func (m *memDreams) AddCollected(_ domain.Context, id int64, amount int64) error {
	d := m.byID[id]
	d.Collected += amount
	m.byID[id] = d
	return nil
}

func (m *memDreams) Close(_ domain.Context, id int64, at time.Time) error {
	d := m.byID[id]
	d.Status = domain.DreamClosed
	d.ClosedAt = &at
	m.byID[id] = d
	return nil
}

func (m *memDreams) RecountDonations(_ domain.Context, id int64) error {
	d := m.byID[id]
	d.DonationsCount++
	m.byID[id] = d
	return nil
}

func (m *memDreams) CountByUser(_ domain.Context, userID int64) (int, error) {
	n := 0
	for _, d := range m.byID {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memDreams) FirstByUserStatus(_ domain.Context, userID int64, status domain.DreamStatus) (domain.Dream, error) {
	for id := int64(1); id <= m.nextID; id++ {
		d, ok := m.byID[id]
		if ok && d.UserID == userID && d.Status == status {
			return d, nil
		}
	}
	return domain.Dream{}, domain.ErrNotFound
}

func (m *memDreams) ListByUserStatus(_ domain.Context, userID int64, status domain.DreamStatus) ([]domain.Dream, error) {
	var out []domain.Dream
	for id := int64(1); id <= m.nextID; id++ {
		d, ok := m.byID[id]
		if ok && d.UserID == userID && d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDreams) ListActive(_ domain.Context, f domain.DreamFilter, _ domain.Page) ([]domain.Dream, int, error) {
	var out []domain.Dream
	for id := int64(1); id <= m.nextID; id++ {
		d, ok := m.byID[id]
		if ok && d.Status == domain.DreamActive && d.UserID != f.ExcludeUserID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memDreams) ByRefDonation(_ domain.Context, donationID int64) (domain.Dream, error) {
	for id := int64(1); id <= m.nextID; id++ {
		d, ok := m.byID[id]
		if !ok {
			continue
		}
		for _, ref := range d.RefDonations {
			if ref == donationID {
				return d, nil
			}
		}
	}
	return domain.Dream{}, domain.ErrNotFound
}

func (m *memDreams) ReplacementCandidates(_ domain.Context, excludeUserID int64) ([]domain.DreamCandidate, error) {
	var out []domain.DreamCandidate
	for _, c := range m.candidates {
		if c.UserID != excludeUserID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memDonations struct {
	byID   map[int64]domain.Donation
	nextID int64
}

func newMemDonations() *memDonations { return &memDonations{byID: map[int64]domain.Donation{}} }

func (m *memDonations) add(d domain.Donation) domain.Donation {
	if d.ID == 0 {
		m.nextID++
		d.ID = m.nextID
	} else if d.ID > m.nextID {
		m.nextID = d.ID
	}
	m.byID[d.ID] = d
	return d
}

func (m *memDonations) Create(_ domain.Context, d domain.Donation) (int64, error) {
	return m.add(d).ID, nil
}

func (m *memDonations) CreateBatch(_ domain.Context, ds []domain.Donation) ([]int64, error) {
	ids := make([]int64, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, m.add(d).ID)
	}
	return ids, nil
}

func (m *memDonations) Get(_ domain.Context, id int64) (domain.Donation, error) {
	d, ok := m.byID[id]
	if !ok {
		return domain.Donation{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDonations) GetForUser(_ domain.Context, id, userID int64) (domain.Donation, error) {
	d, ok := m.byID[id]
	if !ok {
		return domain.Donation{}, domain.ErrNotFound
	}
	if d.RecipientID != userID && (d.SenderID == nil || *d.SenderID != userID) {
		return domain.Donation{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDonations) ListByIDs(_ domain.Context, ids []int64) ([]domain.Donation, error) {
	var out []domain.Donation
	for _, id := range ids {
		if d, ok := m.byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDonations) ListMine(_ domain.Context, userID int64, _ domain.Page) ([]domain.Donation, int, error) {
	var out []domain.Donation
	for id := int64(1); id <= m.nextID; id++ {
		d, ok := m.byID[id]
		if ok && d.RecipientID == userID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memDonations) MarkWaiting(_ domain.Context, id int64, receipt string, firstCurrencyID, firstAmount int64) error {
	d := m.byID[id]
	now := time.Now().UTC()
	d.Status = domain.DonationWaiting
	d.Receipt = receipt
	d.FirstCurrencyID = firstCurrencyID
	d.FirstAmount = firstAmount
	d.PaidAt = &now
	m.byID[id] = d
	return nil
}

func (m *memDonations) Confirm(_ domain.Context, id int64, at time.Time) error {
	d := m.byID[id]
	d.Status = domain.DonationConfirmed
	d.ConfirmedAt = &at
	m.byID[id] = d
	return nil
}

func (m *memDonations) Fail(_ domain.Context, id int64) error {
	d := m.byID[id]
	d.Status = domain.DonationFailed
	m.byID[id] = d
	return nil
}

func (m *memDonations) CountConfirmedIn(_ domain.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		d, ok := m.byID[id]
		if ok && (d.Status == domain.DonationConfirmed || d.Status == domain.DonationAutoConfirmed) {
			n++
		}
	}
	return n, nil
}

func (m *memDonations) CountBySender(_ domain.Context, senderID int64) (int, error) {
	n := 0
	for _, d := range m.byID {
		if d.SenderID != nil && *d.SenderID == senderID {
			n++
		}
	}
	return n, nil
}

func (m *memDonations) Statistics(_ domain.Context, _, _ int64) (domain.DonationStats, domain.DonationStats, domain.DonationStats, []domain.DonationStats, error) {
	return domain.DonationStats{}, domain.DonationStats{}, domain.DonationStats{}, nil, nil
}

func (m *memDonations) ExpireStale(_ domain.Context, now time.Time) (int64, error) {
	var n int64
	for id, d := range m.byID {
		if d.Status == domain.DonationNew && d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			d.Status = domain.DonationFailed
			m.byID[id] = d
			n++
		}
	}
	return n, nil
}

type memCurrencies struct {
	byID  map[int64]domain.Currency
	sizes map[string]domain.DonateSize

	courseUpdates map[string]int64
}

func newMemCurrencies(cs ...domain.Currency) *memCurrencies {
	m := &memCurrencies{
		byID:          map[int64]domain.Currency{},
		sizes:         map[string]domain.DonateSize{},
		courseUpdates: map[string]int64{},
	}
	for _, c := range cs {
		m.byID[c.ID] = c
	}
	return m
}

func sizeKey(currencyID int64, level int) string {
	return fmt.Sprintf("%d:%d", currencyID, level)
}

func (m *memCurrencies) setSize(currencyID int64, level int, size int64) {
	m.sizes[sizeKey(currencyID, level)] = domain.DonateSize{CurrencyID: currencyID, Level: level, Size: size}
}

func (m *memCurrencies) Get(_ domain.Context, id int64) (domain.Currency, error) {
	c, ok := m.byID[id]
	if !ok {
		return domain.Currency{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *memCurrencies) GetByCode(_ domain.Context, code string) (domain.Currency, error) {
	for _, c := range m.byID {
		if c.Code == code {
			return c, nil
		}
	}
	return domain.Currency{}, domain.ErrNotFound
}

func (m *memCurrencies) ListActive(_ domain.Context, _ domain.Page) ([]domain.Currency, int, error) {
	var out []domain.Currency
	for id := int64(1); id <= int64(len(m.byID))+8; id++ {
		c, ok := m.byID[id]
		if ok && c.IsActive {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *memCurrencies) DonateSizes(_ domain.Context, currencyID int64) ([]domain.DonateSize, error) {
	var out []domain.DonateSize
	for level := 1; level <= 8; level++ {
		if s, ok := m.sizes[sizeKey(currencyID, level)]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memCurrencies) DonateSize(_ domain.Context, currencyID int64, level int) (domain.DonateSize, error) {
	s, ok := m.sizes[sizeKey(currencyID, level)]
	if !ok {
		return domain.DonateSize{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memCurrencies) UpdateCourse(_ domain.Context, code string, course int64) error {
	m.courseUpdates[code] = course
	for id, c := range m.byID {
		if c.Code == code {
			c.Course = course
			m.byID[id] = c
		}
	}
	return nil
}

func (m *memCurrencies) Upsert(_ domain.Context, c domain.Currency) (int64, error) {
	if c.ID == 0 {
		c.ID = int64(len(m.byID) + 1)
	}
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memCurrencies) UpsertDonateSize(_ domain.Context, s domain.DonateSize) error {
	m.sizes[sizeKey(s.CurrencyID, s.Level)] = s
	return nil
}

type memSettings struct{ s domain.Settings }

func (m *memSettings) Get(_ domain.Context) (domain.Settings, error) { return m.s, nil }
func (m *memSettings) Update(_ domain.Context, s domain.Settings) error {
	m.s = s
	return nil
}

type memBlacklist struct{ revoked map[string]bool }

func newMemBlacklist() *memBlacklist { return &memBlacklist{revoked: map[string]bool{}} }

func (m *memBlacklist) Add(_ domain.Context, jti string) error {
	m.revoked[jti] = true
	return nil
}

func (m *memBlacklist) Contains(_ domain.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

type memCache struct {
	attempts map[string]int
	pending  map[string][]byte
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{attempts: map[string]int{}, pending: map[string][]byte{}, counters: map[string]int64{}}
}

func counterKey(userID int64, name string) string { return fmt.Sprintf("%d:%s", userID, name) }

func (m *memCache) CountAttempts(_ domain.Context, email string) (int, error) {
	return m.attempts[email], nil
}

func (m *memCache) AddAttempt(_ domain.Context, email, _ string, _ time.Duration) error {
	m.attempts[email]++
	return nil
}

func (m *memCache) StorePending(_ domain.Context, token string, payload []byte, _ time.Duration) error {
	m.pending[token] = payload
	return nil
}

func (m *memCache) LoadPending(_ domain.Context, token string) ([]byte, error) {
	p, ok := m.pending[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memCache) DeletePending(_ domain.Context, token string) error {
	delete(m.pending, token)
	return nil
}

func (m *memCache) IncrCounter(_ domain.Context, userID int64, name string) error {
	m.counters[counterKey(userID, name)]++
	return nil
}

func (m *memCache) Counters(_ domain.Context, userID int64, names ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		out[name] = m.counters[counterKey(userID, name)]
	}
	return out, nil
}

func (m *memCache) ResetCounter(_ domain.Context, userID int64, name string) error {
	m.counters[counterKey(userID, name)] = 0
	return nil
}

type sentMail struct {
	To       string
	Template string
	Params   map[string]string
}

type stubMailer struct{ sent []sentMail }

func (m *stubMailer) Send(_ domain.Context, to, template, _ string, params map[string]string) error {
	m.sent = append(m.sent, sentMail{To: to, Template: template, Params: params})
	return nil
}

// stubTokens mints deterministic pairs and verifies by lookup.
type stubTokens struct {
	seq    int
	claims map[string]domain.TokenClaims
}

func newStubTokens() *stubTokens { return &stubTokens{claims: map[string]domain.TokenClaims{}} }

func (t *stubTokens) Pair(subjectID int64, isOperator bool) (domain.TokenPair, error) {
	t.seq++
	pair := domain.TokenPair{
		Access:     fmt.Sprintf("access-%d", t.seq),
		Refresh:    fmt.Sprintf("refresh-%d", t.seq),
		AccessJTI:  fmt.Sprintf("ajti-%d", t.seq),
		RefreshJTI: fmt.Sprintf("rjti-%d", t.seq),
	}
	exp := time.Now().Add(time.Hour)
	t.claims[pair.Access] = domain.TokenClaims{
		SubjectID: subjectID, IsOperator: isOperator, JTI: pair.AccessJTI, ExpiresAt: exp,
	}
	t.claims[pair.Refresh] = domain.TokenClaims{
		SubjectID: subjectID, IsOperator: isOperator, JTI: pair.RefreshJTI, AccessJTI: pair.AccessJTI, ExpiresAt: exp,
	}
	return pair, nil
}

func (t *stubTokens) Verify(token string) (domain.TokenClaims, error) {
	c, ok := t.claims[token]
	if !ok {
		return domain.TokenClaims{}, domain.ErrUnauthorized
	}
	return c, nil
}

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) { return "h:" + password, nil }

func (stubHasher) Compare(hash, password string) error {
	if hash != "h:"+password {
		return domain.ErrUnauthorized
	}
	return nil
}

type stubOperators struct{ byEmail map[string]domain.Operator }

func (s *stubOperators) GetByEmail(_ domain.Context, email string) (domain.Operator, error) {
	op, ok := s.byEmail[email]
	if !ok {
		return domain.Operator{}, domain.ErrNotFound
	}
	return op, nil
}

func (s *stubOperators) Get(_ domain.Context, id int64) (domain.Operator, error) {
	for _, op := range s.byEmail {
		if op.ID == id {
			return op, nil
		}
	}
	return domain.Operator{}, domain.ErrNotFound
}

func (s *stubOperators) Upsert(_ domain.Context, op domain.Operator) error {
	if s.byEmail == nil {
		s.byEmail = map[string]domain.Operator{}
	}
	s.byEmail[op.Email] = op
	return nil
}

type memNotifications struct{ settings []domain.NotificationSetting }

func (m *memNotifications) Settings(_ domain.Context, userID int64) ([]domain.NotificationSetting, error) {
	var out []domain.NotificationSetting
	for _, s := range m.settings {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memNotifications) Upsert(_ domain.Context, s domain.NotificationSetting) error {
	for i, old := range m.settings {
		if old.UserID == s.UserID && old.Type == s.Type {
			m.settings[i] = s
			return nil
		}
	}
	m.settings = append(m.settings, s)
	return nil
}

type stubRates struct {
	rates map[string]float64
	calls []string
}

func (s *stubRates) Rate(_ domain.Context, counter string) (float64, error) {
	s.calls = append(s.calls, counter)
	r, ok := s.rates[counter]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return r, nil
}
