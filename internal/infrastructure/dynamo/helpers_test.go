package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"state": "verified"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "state"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"updated_at":    "2026-01-01T00:00:00Z",
		"password_hash": "h",
		"email":         "a@x.com",
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)
	assert.Equal(t, "email", ue1.Names["#f0"])
	assert.Equal(t, "password_hash", ue1.Names["#f1"])
	assert.Equal(t, "updated_at", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"attempt_count": 3})
	require.NoError(t, err)
	n, ok := ue.Values[":v0"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "3", n.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestUpdateExpr_Merge(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"state": "consumed"})
	require.NoError(t, err)
	ue.merge(map[string]string{"#id": "challenge_id"}, map[string]types.AttributeValue{":id": strVal("c1")})

	assert.Equal(t, "challenge_id", ue.Names["#id"])
	assert.Equal(t, "state", ue.Names["#f0"])
	assert.Len(t, ue.Values, 2)
}

func TestIsConditionFailed(t *testing.T) {
	err := fmt.Errorf("update: %w", &types.ConditionalCheckFailedException{})
	assert.True(t, isConditionFailed(err))
	assert.False(t, isConditionFailed(errors.New("throttled")))
}

func TestCompositeKey(t *testing.T) {
	k := compositeKey("email", "a@x.com", "purpose", "signup")
	assert.Equal(t, strVal("a@x.com"), k["email"])
	assert.Equal(t, strVal("signup"), k["purpose"])
}
