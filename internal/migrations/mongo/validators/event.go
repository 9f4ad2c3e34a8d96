package validators

import "go.mongodb.org/mongo-driver/bson"

// EventValidator enforces 0 <= booked_count <= capacity on every write.
var EventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"title",
			"description",
			"datetime",
			"location",
			"category",
			"price",
			"capacity",
			"booked_count",
			"status",
			"organizer_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"description": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 2000,
			},

			"datetime": bson.M{
				"bsonType": "date",
			},

			"location": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"category": bson.M{
				"bsonType": "string",
				"enum": []string{
					"concert",
					"conference",
					"workshop",
					"sports",
					"other",
				},
			},

			"price": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"capacity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"booked_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
				},
			},

			"image": bson.M{
				"bsonType":  "string",
				"maxLength": 2048,
			},

			"organizer_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
	"$expr": bson.M{
		"$lte": bson.A{"$booked_count", "$capacity"},
	},
}
