package model

// TokenMeta is the resolved ERC20 metadata of a token.
type TokenMeta struct {
	Address     string `json:"address"`
	Decimals    uint8  `json:"decimals"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	TotalSupply string `json:"total_supply"`
	// Static is set when the values came from the override table.
	Static bool `json:"static"`
}
