package domain

import "time"

// Page bundles offset pagination inputs. Page numbers are 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset converts the page to a SQL offset.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// UserFilter narrows operator user listings.
type UserFilter struct {
	Search   string
	IsActive *bool
}

// DreamFilter narrows public dream listings.
type DreamFilter struct {
	CountryID     *int64
	CategoryIDs   []int64
	ExcludeUserID int64
}

// Repositories (ports)

type UserRepository interface {
	Create(ctx Context, u User) (int64, error)
	Get(ctx Context, id int64) (User, error)
	GetByEmail(ctx Context, email string) (User, error)
	GetByReferCode(ctx Context, code string) (User, error)
	GetByResetToken(ctx Context, token string) (User, error)
	EmailExists(ctx Context, email string) (bool, error)
	UpdateProfile(ctx Context, u User) error
	UpdatePassword(ctx Context, id int64, hash string) error
	UpdateResetToken(ctx Context, id int64, token *string, validTill *time.Time) error
	SetReferer(ctx Context, id int64, referCode string) error
	SetCurrency(ctx Context, id int64, currencyID int64) error
	SetLanguage(ctx Context, id int64, language string) error
	SetActive(ctx Context, id int64, active bool) error
	SetVIP(ctx Context, id int64, vip bool) error
	RecountRefs(ctx Context, referCode string) error
	// Community returns the referral subtree of the user down to maxLevel.
	Community(ctx Context, userID int64, maxLevel int, p Page) ([]CommunityMember, int, error)
	// Ancestors returns the referral chain above the user, nearest first,
	// at most maxLevel entries.
	Ancestors(ctx Context, userID int64, maxLevel int) ([]User, error)
	List(ctx Context, f UserFilter, p Page) ([]User, int, error)
}

type OperatorRepository interface {
	GetByEmail(ctx Context, email string) (Operator, error)
	Get(ctx Context, id int64) (Operator, error)
	Upsert(ctx Context, op Operator) error
}

// BlacklistRepository stores revoked JWT ids.
type BlacklistRepository interface {
	Add(ctx Context, jti string) error
	Contains(ctx Context, jti string) (bool, error)
}

type DreamRepository interface {
	Create(ctx Context, d Dream) (int64, error)
	Get(ctx Context, id int64) (Dream, error)
	Update(ctx Context, d Dream) error
	Delete(ctx Context, id int64) error
	UpdateStatus(ctx Context, id int64, status DreamStatus) error
	// PromoteByUser moves every dream of the user in status from to status to.
	PromoteByUser(ctx Context, userID int64, from, to DreamStatus) error
	SetRefDonations(ctx Context, id int64, donationIDs []int64) error
	AddCollected(ctx Context, id int64, amount int64) error
	Close(ctx Context, id int64, at time.Time) error
	RecountDonations(ctx Context, id int64) error
	CountByUser(ctx Context, userID int64) (int, error)
	FirstByUserStatus(ctx Context, userID int64, status DreamStatus) (Dream, error)
	ListByUserStatus(ctx Context, userID int64, status DreamStatus) ([]Dream, error)
	ListActive(ctx Context, f DreamFilter, p Page) ([]Dream, int, error)
	// ByRefDonation finds the dream whose ref_donations contains donationID.
	ByRefDonation(ctx Context, donationID int64) (Dream, error)
	// ReplacementCandidates lists active dreams of subscribed, active users
	// (top fundraisers, VIPs and charity dreams) excluding the given user,
	// least recently donated first.
	ReplacementCandidates(ctx Context, excludeUserID int64) ([]DreamCandidate, error)
}

type DonationRepository interface {
	Create(ctx Context, d Donation) (int64, error)
	CreateBatch(ctx Context, ds []Donation) ([]int64, error)
	Get(ctx Context, id int64) (Donation, error)
	GetForUser(ctx Context, id, userID int64) (Donation, error)
	ListByIDs(ctx Context, ids []int64) ([]Donation, error)
	ListMine(ctx Context, userID int64, p Page) ([]Donation, int, error)
	MarkWaiting(ctx Context, id int64, receipt string, firstCurrencyID int64, firstAmount int64) error
	Confirm(ctx Context, id int64, at time.Time) error
	// Fail writes off a donation whose recipient went ineligible.
	Fail(ctx Context, id int64) error
	CountConfirmedIn(ctx Context, ids []int64) (int, error)
	CountBySender(ctx Context, senderID int64) (int, error)
	// Statistics returns day/week/month confirmed sums plus per-level totals
	// for the recipient and dream.
	Statistics(ctx Context, recipientID, dreamID int64) (day, week, month DonationStats, levels []DonationStats, err error)
	// ExpireStale fails New donations whose expires_at passed; returns count.
	ExpireStale(ctx Context, now time.Time) (int64, error)
}

type CurrencyRepository interface {
	Get(ctx Context, id int64) (Currency, error)
	GetByCode(ctx Context, code string) (Currency, error)
	ListActive(ctx Context, p Page) ([]Currency, int, error)
	DonateSizes(ctx Context, currencyID int64) ([]DonateSize, error)
	DonateSize(ctx Context, currencyID int64, level int) (DonateSize, error)
	UpdateCourse(ctx Context, code string, course int64) error
	Upsert(ctx Context, c Currency) (int64, error)
	UpsertDonateSize(ctx Context, s DonateSize) error
}

type SettingsRepository interface {
	Get(ctx Context) (Settings, error)
	Update(ctx Context, s Settings) error
}

type CatalogRepository interface {
	Categories(ctx Context) ([]Category, error)
	Countries(ctx Context) ([]Country, error)
	Posts(ctx Context, language string, p Page) ([]Post, int, error)
	Post(ctx Context, id int64) (Post, error)
	Reviews(ctx Context, lang string, p Page) ([]Review, int, error)
	UpsertCategory(ctx Context, c Category) error
	UpsertCountry(ctx Context, c Country) error
	UpsertReview(ctx Context, r Review) error
}

type NotificationRepository interface {
	Settings(ctx Context, userID int64) ([]NotificationSetting, error)
	Upsert(ctx Context, s NotificationSetting) error
}

// Cache (port) backs registration throttling and unread counters.
type Cache interface {
	// CountAttempts returns the number of recent registration attempts for
	// the email; AddAttempt records one with the given TTL.
	CountAttempts(ctx Context, email string) (int, error)
	AddAttempt(ctx Context, email, token string, ttl time.Duration) error
	StorePending(ctx Context, token string, payload []byte, ttl time.Duration) error
	LoadPending(ctx Context, token string) ([]byte, error)
	DeletePending(ctx Context, token string) error
	IncrCounter(ctx Context, userID int64, name string) error
	Counters(ctx Context, userID int64, names ...string) (map[string]int64, error)
	ResetCounter(ctx Context, userID int64, name string) error
}

// Unread counter names kept in the cache.
const (
	CounterUnreadEvents         = "unread_events"
	CounterUnconfirmedDonations = "unconfirmed_donations"
)

// Mailer (port). Implementations deliver transactional mail; the default
// adapter only logs, the SMTP side lives behind the ops boundary.
type Mailer interface {
	Send(ctx Context, to, template, language string, params map[string]string) error
}

// Mail template names.
const (
	MailConfirmEmail    = "confirm_email"
	MailPasswordChanged = "password_changed"
	MailNewDonation     = "new_donation"
)

// RateSource (port) fetches the EUR exchange rate for a counter currency.
type RateSource interface {
	Rate(ctx Context, counter string) (float64, error)
}

// TokenIssuer (port) mints and verifies the JWT access/refresh pair.
type TokenIssuer interface {
	Pair(subjectID int64, isOperator bool) (TokenPair, error)
	Verify(token string) (TokenClaims, error)
}

// TokenPair is an access/refresh pair. The refresh token references the
// access token's jti so the two revoke together.
type TokenPair struct {
	Access     string
	Refresh    string
	AccessJTI  string
	RefreshJTI string
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	SubjectID  int64
	IsOperator bool
	JTI        string
	AccessJTI  string // set on refresh tokens only
	ExpiresAt  time.Time
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c TokenClaims) IsRefresh() bool { return c.AccessJTI != "" }

// Hasher (port) hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
