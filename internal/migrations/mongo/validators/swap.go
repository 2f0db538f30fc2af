package validators

import "go.mongodb.org/mongo-driver/bson"

var idString = bson.M{
	"bsonType":  "string",
	"minLength": 1,
}

var SwapRequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"requester_id", "responder_id", "my_slot_id", "their_slot_id", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":           bson.M{"bsonType": "objectId"},
			"requester_id":  idString,
			"responder_id":  idString,
			"my_slot_id":    idString,
			"their_slot_id": idString,
			"status": bson.M{
				"enum": []string{"PENDING", "ACCEPTED", "REJECTED"},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}

var HistoryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"requester_id",
			"responder_id",
			"my_slot_id",
			"their_slot_id",
			"my_slot_title",
			"their_slot_title",
			"status",
			"decided_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":              bson.M{"bsonType": "objectId"},
			"requester_id":     idString,
			"responder_id":     idString,
			"my_slot_id":       idString,
			"their_slot_id":    idString,
			"my_slot_title":    bson.M{"bsonType": "string"},
			"their_slot_title": bson.M{"bsonType": "string"},
			"status": bson.M{
				"enum": []string{"ACCEPTED", "REJECTED", "CANCELLED"},
			},
			"decided_at": bson.M{"bsonType": "date"},
		},
	},
}
