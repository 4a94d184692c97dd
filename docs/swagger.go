// Package docs registers the OpenAPI document served by the gateway under /swagger
package docs

import "github.com/swaggo/swag"

// @title Portal de Transparencia API
// @version 1.0
// @description Catalog tree, document search, citizen participation and staff administration of the transparency portal

// @host localhost:8000
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// @tag.name auth
// @tag.description Login, tokens, profile and two-factor authentication
// @tag.name admin-users
// @tag.description Staff accounts
// @tag.name public-catalogs
// @tag.description Catalog navigation for citizens
// @tag.name public-documents
// @tag.description Document search and downloads
// @tag.name admin-catalogs
// @tag.description Catalog tree administration
// @tag.name admin-documents
// @tag.description Document uploads
// @tag.name public-participation
// @tag.description Citizen messages
// @tag.name admin-participation
// @tag.description Message inbox
// @tag.name public-news
// @tag.description Published news
// @tag.name admin-news
// @tag.description News administration
// @tag.name public-social
// @tag.description Social network profiles
// @tag.name admin-social
// @tag.description Social link administration

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/api/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}, "429": {"description": "Too many attempts"}}
            }
        },
        "/api/auth/refresh": {
            "post": {"tags": ["auth"], "summary": "Refresh tokens", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid refresh token"}}}
        },
        "/api/auth/profile": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current user", "responses": {"200": {"description": "OK"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Update own name, photo, area and phone", "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid field"}}}
        },
        "/api/admin/users": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin-users"], "summary": "List users", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin-users"], "summary": "Create user", "responses": {"201": {"description": "Created"}}}
        },
        "/api/admin/dependencies/tree": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["dependencies"], "summary": "Institutions tree", "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/dependencies/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["dependencies"],
                "summary": "Dependency with type, parent and children",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found or inactive"}}
            }
        },
        "/api/public/catalogs/roots": {
            "get": {"tags": ["public-catalogs"], "summary": "Active root catalogs", "responses": {"200": {"description": "OK"}}}
        },
        "/api/public/catalogs/{id}/children": {
            "get": {
                "tags": ["public-catalogs"],
                "summary": "Active children with availability",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Catalog not found"}}
            }
        },
        "/api/public/catalogs/{id}/path": {
            "get": {
                "tags": ["public-catalogs"],
                "summary": "Breadcrumb from the root",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Catalog not found"}}
            }
        },
        "/api/public/documents": {
            "get": {
                "tags": ["public-documents"],
                "summary": "Search documents within a catalog subtree",
                "parameters": [
                    {"type": "integer", "name": "catalog_id", "in": "query"},
                    {"type": "string", "name": "categories", "in": "query", "description": "Comma separated catalog ids"},
                    {"type": "integer", "name": "year", "in": "query"},
                    {"type": "string", "name": "periodicity", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/public/documents/{id}/download": {
            "get": {
                "tags": ["public-documents"],
                "summary": "Download a document",
                "produces": ["application/octet-stream"],
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "File"}, "404": {"description": "Document not found"}}
            }
        },
        "/api/admin/catalogs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin-catalogs"], "summary": "List catalogs", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin-catalogs"], "summary": "Create catalog", "responses": {"201": {"description": "Created"}}}
        },
        "/api/admin/documents": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin-documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Catalog does not accept documents"}}
            }
        },
        "/api/public/participation/messages": {
            "post": {"tags": ["public-participation"], "summary": "Send a citizen message", "responses": {"201": {"description": "Created"}, "429": {"description": "Too many messages"}}}
        },
        "/api/public/participation/messages/{folio}": {
            "get": {
                "tags": ["public-participation"],
                "summary": "Message status by folio",
                "parameters": [{"type": "string", "name": "folio", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Folio not found"}}
            }
        },
        "/api/admin/participation/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["admin-participation"], "summary": "Message inbox", "responses": {"200": {"description": "OK"}}}
        },
        "/api/public/news": {
            "get": {"tags": ["public-news"], "summary": "Published news", "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/news": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin-news"], "summary": "Create news", "consumes": ["multipart/form-data"], "responses": {"201": {"description": "Created"}}}
        },
        "/api/public/social-links": {
            "get": {"tags": ["public-social"], "summary": "Social links", "responses": {"200": {"description": "OK"}}}
        },
        "/api/admin/social-links": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["admin-social"], "summary": "Create social link", "responses": {"201": {"description": "Created"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Portal de Transparencia API",
	Description:      "Catalog tree, document search, citizen participation and staff administration of the transparency portal",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
