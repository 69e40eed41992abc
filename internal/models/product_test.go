package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacteristicsSetKeepsPosition(t *testing.T) {
	c := NewCharacteristics()
	c.Set("Металл", "золото")
	c.Set("Проба", "585")
	c.Set("Металл", "серебро")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"Металл", "Проба"}, c.Keys())

	v, ok := c.Get("Металл")
	assert.True(t, ok)
	assert.Equal(t, "серебро", v)
}

func TestCharacteristicsZeroValueIsUsable(t *testing.T) {
	var c Characteristics
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("Вес", "2 г")
	assert.Equal(t, map[string]string{"Вес": "2 г"}, c.Map())
}

func TestCharacteristicsJSONPreservesOrder(t *testing.T) {
	c := CharacteristicsFrom(
		Attribute{Name: "Цвет", Value: "золото"},
		Attribute{Name: "Вставка", Value: "фианит"},
	)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"Цвет":"золото","Вставка":"фианит"}`, string(data))

	var back Characteristics
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Attributes(), back.Attributes())
}

func TestCharacteristicsUnmarshalRejectsArrays(t *testing.T) {
	var c Characteristics
	err := json.Unmarshal([]byte(`["a","b"]`), &c)
	assert.Error(t, err)
}

func TestProductRecordJSONShape(t *testing.T) {
	rec := ProductRecord{
		URL:   "https://example.com/p/1",
		Title: StringPtr("Серьги"),
		Price: Int64Ptr(12345),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"url": "https://example.com/p/1",
		"title": "Серьги",
		"price": 12345,
		"description": null,
		"characteristics": {},
		"image_url": null
	}`, string(data))
}
