package models

const TxTypeInvokeScript = 16

type CallArg struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

type Payment struct {
	AssetID string `json:"assetId"`
	Tokens  string `json:"tokens"`
}

type Fee struct {
	Tokens  string `json:"tokens"`
	AssetID string `json:"assetId"`
}

type FunctionCall struct {
	Function string    `json:"function"`
	Args     []CallArg `json:"args"`
}

type InvokeScriptData struct {
	DApp    string       `json:"dApp"`
	Call    FunctionCall `json:"call"`
	Payment []Payment    `json:"payment"`
	Fee     Fee          `json:"fee"`
}

// TransactionRequest is the payload handed to the extension for signing.
type TransactionRequest struct {
	Type int              `json:"type"`
	Data InvokeScriptData `json:"data"`
}

// SignedTransaction holds the fields read back from the extension's JSON answer.
type SignedTransaction struct {
	ID     string `json:"id"`
	Type   int    `json:"type"`
	Sender string `json:"sender,omitempty"`
}
