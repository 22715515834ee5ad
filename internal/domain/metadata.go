package domain

// TokenMetadata holds the immutable on-chain properties of an ERC20 token.
// Fetched once per contract address and reused for the process lifetime.
type TokenMetadata struct {
	Contract  string // token contract address (0x-hex)
	Symbol    string // token symbol, e.g. "USDC"
	Decimals  uint8  // token decimal precision
	FetchedAt int64  // when metadata was fetched (ms)
}

// MaxTokenDecimals is the largest decimal count accepted as a plausible
// token precision. Values above this are treated as corrupt metadata.
const MaxTokenDecimals = 36
