package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyUnmarshalAcceptsStringAndNumber(t *testing.T) {
	var payload struct {
		Price  Money `json:"price"`
		Amount Money `json:"amount"`
		Empty  Money `json:"empty"`
		Null   Money `json:"null"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":"59","amount":29.905,"empty":"","null":null}`), &payload))

	assert.Equal(t, "59.00", payload.Price.String())
	assert.Equal(t, "29.91", payload.Amount.String())
	assert.True(t, payload.Empty.IsZero())
	assert.True(t, payload.Null.IsZero())
}

func TestMoneyUnmarshalRejectsGarbage(t *testing.T) {
	var m Money
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMoneyMarshalAndArithmetic(t *testing.T) {
	total := NewMoney("29.90").MulInt(2).Add(NewMoney("0.1"))

	raw, err := json.Marshal(total)
	require.NoError(t, err)
	assert.Equal(t, `"59.90"`, string(raw))
	assert.True(t, total.Equal(NewMoney("59.9")))
	assert.True(t, NewMoney("bad").IsZero())
}
