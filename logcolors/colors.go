package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCacheGames    = Green + "[Cache:Games]" + Reset
	LogCacheNegative = Cyan + "[Cache:Negative]" + Reset
	LogCacheSweep    = Blue + "[Cache:Sweep]" + Reset
	LogCollection    = BrightBlue + "[Collection]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit         = Purple + "[RateLimit]" + Reset
	LogUpstreamRateLimit = Purple + "[RateLimit:IGDB]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// strategyColors rotate by name so each strategy keeps one color across log lines
var strategyColors = []string{
	Green, Blue, Purple, Cyan,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Strategy returns a colored "[Strategy:<name>]" prefix.
// Same strategy name always gets the same color.
func Strategy(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	color := strategyColors[hash%len(strategyColors)]
	return color + "[Strategy:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Upstream and resolution log prefixes
const (
	LogRequest   = Purple + "[Request]" + Reset
	LogIGDB      = Cyan + "[IGDB]" + Reset
	LogToken     = Cyan + "[Access Token]" + Reset
	LogAuthError = Purple + "[Auth Error]" + Reset
	LogSearch    = Blue + "[Search]" + Reset
	LogFallback  = Cyan + "[Fallback]" + Reset
	LogResolver  = Green + "[Resolver]" + Reset
	LogBestMatch = Green + "[Best Match]" + Reset
	LogDispatch  = Yellow + "[Dispatch]" + Reset
	LogWarning   = Red + "[Warning]" + Reset
)
