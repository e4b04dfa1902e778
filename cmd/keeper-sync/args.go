package main

import (
	"fmt"
	"strings"

	"github.com/kelsos/keeper-sync/internal/models"
)

// parseCallArgs reads positional arguments of the form name:Type=value.
// A missing "=value" leaves the argument undefined.
func parseCallArgs(raw []string, base58Names []string) ([]models.ArgumentInput, error) {
	base58 := make(map[string]bool, len(base58Names))
	for _, name := range base58Names {
		base58[name] = true
	}

	args := make([]models.ArgumentInput, 0, len(raw))
	for _, item := range raw {
		head, value, hasValue := strings.Cut(item, "=")
		name, argType, ok := strings.Cut(head, ":")
		if !ok || name == "" || argType == "" {
			return nil, fmt.Errorf("invalid argument %q, expected name:Type=value", item)
		}

		arg := models.ArgumentInput{Name: name, Type: argType}
		if hasValue {
			v := value
			arg.Value = &v
		}
		if argType == models.ArgTypeByteVector {
			arg.ByteVectorType = models.EncodingBase64
			if base58[name] {
				arg.ByteVectorType = models.EncodingBase58
			}
		}
		args = append(args, arg)
	}
	return args, nil
}

// parsePayments reads payments of the form assetId:tokens.
func parsePayments(raw []string) ([]models.Payment, error) {
	payments := make([]models.Payment, 0, len(raw))
	for _, item := range raw {
		assetID, tokens, ok := strings.Cut(item, ":")
		if !ok || assetID == "" || tokens == "" {
			return nil, fmt.Errorf("invalid payment %q, expected assetId:tokens", item)
		}
		payments = append(payments, models.Payment{AssetID: assetID, Tokens: tokens})
	}
	return payments, nil
}
