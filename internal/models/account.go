package models

import (
	jsoniter "github.com/json-iterator/go"
)

type AccountBalance struct {
	Available string `json:"available"`
	LeasedOut string `json:"leasedOut"`
	Network   string `json:"network,omitempty"`
}

// accountField marks which keys a decoded account carried.
type accountField uint8

const (
	fieldAddress accountField = 1 << iota
	fieldName
	fieldNetwork
	fieldNetworkCode
	fieldPublicKey
	fieldType
	fieldBalance
)

var accountFieldKeys = map[string]accountField{
	"address":     fieldAddress,
	"name":        fieldName,
	"network":     fieldNetwork,
	"networkCode": fieldNetworkCode,
	"publicKey":   fieldPublicKey,
	"type":        fieldType,
	"balance":     fieldBalance,
}

type Account struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	Network     string          `json:"network"`
	NetworkCode string          `json:"networkCode"`
	PublicKey   string          `json:"publicKey"`
	Type        string          `json:"type"`
	Balance     *AccountBalance `json:"balance,omitempty"`

	present accountField
}

// UnmarshalJSON records which keys were present so Merge can apply them,
// empty values included.
func (a *Account) UnmarshalJSON(data []byte) error {
	api := jsoniter.ConfigCompatibleWithStandardLibrary

	type plain Account
	var decoded plain
	if err := api.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var keys map[string]jsoniter.RawMessage
	if err := api.Unmarshal(data, &keys); err != nil {
		return err
	}

	*a = Account(decoded)
	a.present = 0
	for key := range keys {
		a.present |= accountFieldKeys[key]
	}
	return nil
}

// Merge returns a copy of a with update applied on top. A decoded update
// applies every key it carried; a constructed one applies its non-empty fields.
func (a Account) Merge(update Account) Account {
	applies := func(field accountField, empty bool) bool {
		if update.present != 0 {
			return update.present&field != 0
		}
		return !empty
	}

	merged := a
	if applies(fieldAddress, update.Address == "") {
		merged.Address = update.Address
	}
	if applies(fieldName, update.Name == "") {
		merged.Name = update.Name
	}
	if applies(fieldNetwork, update.Network == "") {
		merged.Network = update.Network
	}
	if applies(fieldNetworkCode, update.NetworkCode == "") {
		merged.NetworkCode = update.NetworkCode
	}
	if applies(fieldPublicKey, update.PublicKey == "") {
		merged.PublicKey = update.PublicKey
	}
	if applies(fieldType, update.Type == "") {
		merged.Type = update.Type
	}
	if applies(fieldBalance, update.Balance == nil) {
		merged.Balance = nil
		if update.Balance != nil {
			balance := *update.Balance
			merged.Balance = &balance
		}
	}
	return merged
}

// PublicState is the wallet snapshot reported by the extension.
type PublicState struct {
	Initialized bool     `json:"initialized"`
	Locked      bool     `json:"locked"`
	Network     *Network `json:"network,omitempty"`
	Account     *Account `json:"account,omitempty"`
}

func (a Account) Clone() Account {
	c := a
	if a.Balance != nil {
		balance := *a.Balance
		c.Balance = &balance
	}
	return c
}
