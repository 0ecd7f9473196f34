package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shinyyama/escrow-backend/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	name := objectName(now)
	assert.True(t, strings.HasPrefix(name, "reconciliations/20260309-"), name)
	assert.True(t, strings.HasSuffix(name, ".json"), name)
	assert.NotEqual(t, name, objectName(now))
}

func TestWriteReport(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	list := []model.Reconciliation{{
		ID:              7,
		Kind:            model.ReconcileRefund,
		Reference:       "refund-order-3",
		PaymentIntentID: "pi_1",
		Amount:          decimal.RequireFromString("12.50"),
		Currency:        "usd",
		Detail:          "order changed concurrently",
	}}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, list, now))

	var got struct {
		Count   int `json:"count"`
		Entries []struct {
			Kind      string `json:"kind"`
			Reference string `json:"reference"`
			Amount    string `json:"amount"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "refund", got.Entries[0].Kind)
	assert.Equal(t, "refund-order-3", got.Entries[0].Reference)
	assert.Equal(t, "12.5", got.Entries[0].Amount)
}
