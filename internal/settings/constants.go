package settings

import "time"

// Defaults applied when config.yaml omits a value.
const (
	// DefaultServerAddr is the listen address for the webhook and admin API.
	DefaultServerAddr = ":8318"
	// DefaultLogLevel is the fallback logrus level.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the fallback log formatter ("text" or "json").
	DefaultLogFormat = "text"

	// DefaultMessageLimit is the message tier limit per DefaultWindow.
	DefaultMessageLimit = 30
	// DefaultMessageLongLimit is the message tier limit per DefaultLongWindow.
	DefaultMessageLongLimit = 300
	// DefaultCommandLimit is the command tier limit per DefaultWindow.
	DefaultCommandLimit = 10
	// DefaultCommandLongLimit is the command tier limit per DefaultLongWindow.
	DefaultCommandLongLimit = 100
	// DefaultFinancialLimit is the financial-operation tier limit per DefaultWindow.
	DefaultFinancialLimit = 3
	// DefaultWindow is the short fixed window length of every tier.
	DefaultWindow = time.Minute
	// DefaultLongWindow is the longer-period window of the message and command tiers.
	DefaultLongWindow = time.Hour

	// DefaultAddressPrefix is used when a user has no platform username.
	DefaultAddressPrefix = "user"
	// DefaultAddressDomain is the domain suffix of derived addresses.
	DefaultAddressDomain = "pay.walletbot.app"
	// DefaultCreateTimeout bounds account provisioning against the store.
	DefaultCreateTimeout = 5 * time.Second

	// DefaultRedisPrefix is the fallback Redis key prefix for rate state.
	DefaultRedisPrefix = "ingress:rl"

	// DefaultRetentionIdle is how long idle rate/session state is kept.
	DefaultRetentionIdle = 24 * time.Hour
	// DefaultRetentionInterval is how often the retention sweep runs.
	DefaultRetentionInterval = 10 * time.Minute

	// DefaultIngressRPS is the process-wide webhook intake rate (0 disables).
	DefaultIngressRPS = 200
	// DefaultIngressBurst is the process-wide webhook intake burst.
	DefaultIngressBurst = 400

	// AccountNumberSequence names the sequence row used to allocate account numbers.
	AccountNumberSequence = "account_number"
)

// DefaultFinancialCommands lists commands that move funds.
var DefaultFinancialCommands = []string{"/withdraw", "/send", "/pay", "/swap", "/invoice"}

// DefaultCooldowns maps command names to their minimum inter-use interval in milliseconds.
var DefaultCooldowns = map[string]int64{
	"/withdraw": 60_000,
}
