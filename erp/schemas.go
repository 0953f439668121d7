// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package erp

// Payload schemas only constrain value types, they do not require
// fields. Create and update share them, and updates are partial.

var contactSchema = `{
	"$id": "https://kontor.relabs.tech/schemata/contact.json",
	"type": "object",
	"properties": {
		"name": { "type": "string" },
		"email": { "type": ["string", "null"] },
		"phone": { "type": ["string", "null"] },
		"street": { "type": ["string", "null"] },
		"city": { "type": ["string", "null"] },
		"zip": { "type": ["string", "null"] },
		"country_id": { "type": ["integer", "null"] },
		"company_id": { "type": ["integer", "null"] }
	}
}`

var productSchema = `{
	"$id": "https://kontor.relabs.tech/schemata/product.json",
	"type": "object",
	"properties": {
		"name": { "type": "string" },
		"code": { "type": ["string", "null"] },
		"price": { "type": ["number", "null"] },
		"stock": { "type": ["integer", "null"] },
		"category_id": { "type": ["integer", "null"] },
		"active": { "type": ["boolean", "null"] },
		"image": { "type": ["string", "null"] }
	}
}`

// Schemas returns the payload schemas of all resources
func Schemas() []string {
	return []string{contactSchema, productSchema}
}
