package models

// NodeError is the body a Waves node returns for a failed request.
type NodeError struct {
	Error   interface{} `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (e NodeError) Failed() bool {
	return e.Error != nil
}

type MetaResponse struct {
	NodeError
	Address string   `json:"address"`
	Meta    DappMeta `json:"meta"`
}

type IssueTransaction struct {
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

type AssetBalance struct {
	AssetID          string            `json:"assetId"`
	Balance          int64             `json:"balance"`
	IssueTransaction *IssueTransaction `json:"issueTransaction,omitempty"`
}

type BalancesResponse struct {
	NodeError
	Address  string         `json:"address"`
	Balances []AssetBalance `json:"balances"`
}

type ScriptInfoResponse struct {
	NodeError
	Address    string  `json:"address"`
	Script     *string `json:"script"`
	Complexity int64   `json:"complexity"`
	ExtraFee   int64   `json:"extraFee"`
}

func (s ScriptInfoResponse) Scripted() bool {
	return s.Script != nil
}
