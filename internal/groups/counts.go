package groups

// knownCounts is a point-in-time snapshot of victim totals for groups
// whose upstream count fields are known to be unreliable. Exact-match
// lookup by lower-cased group name, checked before any heuristic.
// Refresh these against the upstream's published statistics when they
// drift too far.
var knownCounts = map[string]int{
	"lockbit3":     1815,
	"lockbit2":     864,
	"alphv":        731,
	"clop":         606,
	"cl0p":         606,
	"akira":        785,
	"play":         692,
	"8base":        522,
	"blackbasta":   511,
	"bianlian":     469,
	"medusa":       417,
	"royal":        350,
	"conti":        674,
	"pysa":         308,
	"hunters":      280,
	"blackcat":     731,
	"ransomhub":    531,
	"qilin":        318,
	"cactus":       269,
	"mallox":       204,
	"ragnarlocker": 105,
	"vicesociety":  246,
	"snatch":       139,
	"killnet":      82,
}
