package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"owner_id", "title", "start_time", "end_time", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"start_time": bson.M{"bsonType": "date"},
			"end_time":   bson.M{"bsonType": "date"},

			"status": bson.M{
				"enum": []string{"BUSY", "SWAPPABLE", "SWAP_PENDING"},
			},

			"lock_version": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"created_at": bson.M{"bsonType": "date"},
		},
	},
	"$expr": bson.M{"$gt": []string{"$end_time", "$start_time"}},
}
