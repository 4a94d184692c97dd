package models

import (
	"time"
)

// Permission is a flat capability code granted through roles
type Permission struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"size:100;uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission codes checked by the services
const (
	PermUserRegister       = "USUARIO_REGISTRAR"
	PermUserChangePassword = "USUARIO_CAMBIAR_PASSWORD"
	PermUserDeactivate     = "USUARIO_DESACTIVAR"
	PermDocumentUpload     = "DOCUMENTO_CARGAR"
	PermDocumentEdit       = "DOCUMENTO_EDITAR"
	PermDocumentDelete     = "DOCUMENTO_ELIMINAR"
	PermReportView         = "REPORTE_VER"
	PermRoleManage         = "ROL_GESTIONAR"
)

// AllPermissionCodes lists every code with its description, in seeding order
var AllPermissionCodes = []Permission{
	{Code: PermUserRegister, Description: "Registrar usuarios"},
	{Code: PermUserChangePassword, Description: "Cambiar contraseña de usuarios"},
	{Code: PermUserDeactivate, Description: "Desactivar usuarios"},
	{Code: PermDocumentUpload, Description: "Cargar documentos"},
	{Code: PermDocumentEdit, Description: "Editar documentos"},
	{Code: PermDocumentDelete, Description: "Eliminar documentos"},
	{Code: PermReportView, Description: "Ver reportes"},
	{Code: PermRoleManage, Description: "Gestionar roles y catálogos"},
}
