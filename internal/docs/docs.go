// Package docs 提供 MomentumMail API 的 Swagger 描述
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/emails": {
            "get": {
                "description": "按插入顺序返回所有跟踪中的邮件",
                "produces": ["application/json"],
                "tags": ["Emails"],
                "summary": "列出跟踪邮件",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/Response"}}
                }
            },
            "post": {
                "description": "记录一封已发送邮件，状态为 WAITING",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Emails"],
                "summary": "跟踪新邮件",
                "parameters": [
                    {
                        "description": "邮件信息",
                        "name": "email",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/CreateEmailRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        },
        "/api/emails/{id}/status": {
            "put": {
                "description": "手动设置邮件状态，例如标记为已回复",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Emails"],
                "summary": "更新邮件状态",
                "parameters": [
                    {"type": "string", "description": "邮件ID", "name": "id", "in": "path", "required": true},
                    {
                        "description": "新状态",
                        "name": "status",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/UpdateStatusRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/Response"}}
                }
            }
        }
    },
    "definitions": {
        "CreateEmailRequest": {
            "type": "object",
            "required": ["recipient", "sentAt", "subject"],
            "properties": {
                "followUpInterval": {"type": "integer"},
                "recipient": {"type": "string"},
                "sentAt": {"type": "string"},
                "subject": {"type": "string"}
            }
        },
        "UpdateStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["WAITING", "REPLIED", "FOLLOW_UP_SENT"]}
            }
        },
        "TrackedEmail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "recipient": {"type": "string"},
                "subject": {"type": "string"},
                "sentAt": {"type": "string"},
                "followUpInterval": {"type": "integer"},
                "status": {"type": "string"},
                "followUpContent": {"type": "string"}
            }
        },
        "Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "MomentumMail API",
	Description:      "已发送邮件跟进提醒服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
