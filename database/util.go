package database

import (
	"strconv"

	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseIntAttr(av dbtypes.AttributeValue) int {
	n, ok := av.(*dbtypes.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0
	}
	return v
}
