package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConversationFilter_IsSymmetric(t *testing.T) {
	req := require.New(t)

	ab := conversationFilter("a", "b")["$or"].([]bson.M)
	ba := conversationFilter("b", "a")["$or"].([]bson.M)

	req.Len(ab, 2)
	req.ElementsMatch(ab, ba)
	req.Contains(ab, bson.M{"senderId": "a", "receiverId": "b"})
	req.Contains(ab, bson.M{"senderId": "b", "receiverId": "a"})
}

func TestIDValue(t *testing.T) {
	req := require.New(t)

	hex := "64b7f0a2c9e77a0012345678"
	oid, err := primitive.ObjectIDFromHex(hex)
	req.NoError(err)

	req.Equal(oid, idValue(hex))
	req.Equal("user-42", idValue("user-42"))
}

func TestSidebarOptions_ExcludesPassword(t *testing.T) {
	opts := sidebarOptions()
	require.Equal(t, bson.M{"password": 0}, opts.Projection)
}
