package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelOrder(t *testing.T) {
	assert.True(t, LevelFerrum.Less(LevelArgentum))
	assert.True(t, LevelArgentum.Less(LevelAurum))
	assert.True(t, LevelAurum.Less(LevelPlatinum))
	assert.False(t, LevelPlatinum.Less(LevelFerrum))
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("  Aurum ")
	assert.True(t, ok)
	assert.Equal(t, LevelAurum, l)

	_, ok = ParseLevel("bronze")
	assert.False(t, ok)
	assert.Equal(t, "Platinum", LevelPlatinum.Title())
}

func TestEffectiveDiscountClamp(t *testing.T) {
	assert.Equal(t, 0, User{Discount: -15}.EffectiveDiscount())
	assert.Equal(t, 20, User{Discount: 20}.EffectiveDiscount())
}
