package document

import (
	"regexp"
	"strings"

	"github.com/nimburion/docstore/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const idField = "_id"

// idFilter matches id as stored. A valid ObjectID hex also matches documents
// whose _id was written as an ObjectID by another client.
func idFilter(id string) bson.M {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.M{idField: id}
	}
	return bson.M{idField: bson.M{"$in": bson.A{id, oid}}}
}

// substringFilter matches documents whose field contains value, ignoring case.
// value is matched literally; regex metacharacters are escaped.
func substringFilter(field, value string) bson.M {
	return bson.M{
		strings.TrimSpace(field): primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"},
	}
}

// requestFilter returns the substring filter requested by req, or fallback.
func requestFilter(req repository.PageRequest, fallback bson.M) bson.M {
	if req.HasFilter() {
		return substringFilter(req.FilterField, req.FilterValue)
	}
	if fallback == nil {
		return bson.M{}
	}
	return fallback
}

// sortSpec builds a single-field sort. An empty field leaves natural store order.
func sortSpec(req repository.PageRequest) bson.D {
	field := strings.TrimSpace(req.SortField)
	if field == "" {
		return nil
	}
	direction := 1
	if repository.ParseSortOrder(string(req.SortDirection)) == repository.SortDesc {
		direction = -1
	}
	return bson.D{{Key: field, Value: direction}}
}
