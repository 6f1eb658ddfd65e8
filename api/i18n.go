package api

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/unimak/dftrack/api/models"
)

// supportedTags mirrors models.SupportedLanguages; the first entry is the fallback
var supportedTags = []language.Tag{
	language.English,
	language.Turkish,
	language.Spanish,
}

var languageMatcher = language.NewMatcher(supportedTags)

// PreferredLanguage picks the interface language. An explicit supported
// choice wins; otherwise the Accept-Language header is matched.
func PreferredLanguage(explicit, acceptLanguage string) string {
	explicit = strings.ToLower(strings.TrimSpace(explicit))
	if models.IsSupportedLanguage(explicit) {
		return explicit
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return models.SupportedLanguages[0]
	}
	_, index, _ := languageMatcher.Match(tags...)
	base, _ := supportedTags[index].Base()
	return base.String()
}

// uiMessages holds the interface strings. English is the fallback for
// anything a language leaves out.
var uiMessages = map[string]map[string]string{
	"en": {
		"home":                 "Home",
		"upload":               "Upload",
		"info":                 "Info",
		"history":              "History",
		"settings":             "Settings",
		"admin":                "Admin",
		"projects":             "Projects",
		"login":                "Log In",
		"logout":               "Log Out",
		"register":             "Register",
		"username":             "Username",
		"password":             "Password",
		"confirmation":         "Confirm Password",
		"language":             "Language",
		"choose_language":      "Choose Language",
		"save":                 "Save",
		"submit":               "Submit",
		"delete":               "Delete",
		"project":              "Project",
		"project_number":       "Project Number",
		"project_name":         "Project Name",
		"project_manager":      "Project Manager",
		"customer":             "Customer",
		"country":              "Country",
		"engineer":             "Engineer",
		"quantity":             "Quantity",
		"machine_type":         "Machine Type",
		"group":                "Group",
		"component":            "Component",
		"components":           "Components",
		"reason":               "Reason",
		"department":           "Department",
		"action":               "Action",
		"priority":             "Priority",
		"description":          "Description",
		"status":               "Status",
		"step":                 "Step",
		"photos":               "Photos",
		"df_number":            "DF Number",
		"recorder":             "Recorded By",
		"created_at":           "Created",
		"planned_closing_date": "Planned Closing Date",
		"recent_problems":      "Recent Problems",
		"no_problems":          "No problems recorded yet.",
		"add_component":        "Add Component",
		"add_step":             "Add Step",
		"update_status":        "Update Status",
		"import":               "Import",
		"error":                "Error",
	},
	"tr": {
		"home":                 "Ana Sayfa",
		"upload":               "Yükle",
		"info":                 "Bilgi",
		"history":              "Geçmiş",
		"settings":             "Ayarlar",
		"admin":                "Yönetim",
		"projects":             "Projeler",
		"login":                "Giriş Yap",
		"logout":               "Çıkış Yap",
		"register":             "Kayıt Ol",
		"username":             "Kullanıcı Adı",
		"password":             "Şifre",
		"confirmation":         "Şifre Tekrar",
		"language":             "Dil",
		"choose_language":      "Dil Seçiniz",
		"save":                 "Kaydet",
		"submit":               "Gönder",
		"delete":               "Sil",
		"project":              "Proje",
		"project_number":       "Proje Numarası",
		"project_name":         "Proje Adı",
		"project_manager":      "Proje Yöneticisi",
		"customer":             "Müşteri",
		"country":              "Ülke",
		"engineer":             "Mühendis",
		"quantity":             "Adet",
		"machine_type":         "Makine Tipi",
		"group":                "Grup",
		"component":            "Parça",
		"components":           "Parçalar",
		"reason":               "Sebep",
		"department":           "Departman",
		"action":               "Aksiyon",
		"priority":             "Öncelik",
		"description":          "Açıklama",
		"status":               "Durum",
		"step":                 "Adım",
		"photos":               "Fotoğraflar",
		"df_number":            "DF Numarası",
		"recorder":             "Kaydeden",
		"created_at":           "Oluşturulma",
		"planned_closing_date": "Planlanan Kapanış Tarihi",
		"recent_problems":      "Son Problemler",
		"no_problems":          "Henüz kayıtlı problem yok.",
		"add_component":        "Parça Ekle",
		"add_step":             "Adım Ekle",
		"update_status":        "Durumu Güncelle",
		"import":               "İçe Aktar",
		"error":                "Hata",

		"reasons.missing_components": "Eksik Parça",
		"reasons.wrong_part":         "Yanlış Parça",
		"reasons.damaged_materials":  "Hasarlı Malzeme",
		"reasons.programming_issue":  "Otomasyon-Yazılım",
		"reasons.design_issue":       "Tasarım Hatası",
		"priority.low":               "Düşük",
		"priority.normal":            "Normal",
		"priority.high":              "Yüksek",
		"action.1":                   "Parça Gönder",
		"action.2":                   "Yerinde Düzelt",
		"action.3":                   "Müşteri Desteği",
		"action.4":                   "Yazılım Revizyonu",
		"department.sales":           "Satış",
		"department.design":          "Tasarım",
		"department.method":          "Metot",
		"department.purchase":        "Satın Alma",
		"department.manufacturing":   "Üretim",
		"department.warehouse":       "Depo",
		"department.quality":         "Kalite",
		"department.shipment":        "Sevkiyat",
		"department.automation":      "Otomasyon",
		"department.electronics":     "Elektronik",
		"status.waiting":             "Bekliyor",
		"status.finished":            "Tamamlandı",
		"status.cancel":              "İptal",
	},
	"es": {
		"home":                 "Inicio",
		"upload":               "Subir",
		"info":                 "Información",
		"history":              "Historial",
		"settings":             "Configuración",
		"admin":                "Administración",
		"projects":             "Proyectos",
		"login":                "Iniciar Sesión",
		"logout":               "Cerrar Sesión",
		"register":             "Registrarse",
		"username":             "Usuario",
		"password":             "Contraseña",
		"confirmation":         "Confirmar Contraseña",
		"language":             "Idioma",
		"choose_language":      "Seleccionar Idioma",
		"save":                 "Guardar",
		"submit":               "Enviar",
		"delete":               "Eliminar",
		"project":              "Proyecto",
		"project_number":       "Número de Proyecto",
		"project_name":         "Nombre del Proyecto",
		"project_manager":      "Gerente del Proyecto",
		"customer":             "Cliente",
		"country":              "País",
		"engineer":             "Ingeniero",
		"quantity":             "Cantidad",
		"machine_type":         "Tipo de Máquina",
		"group":                "Grupo",
		"component":            "Componente",
		"components":           "Componentes",
		"reason":               "Razón",
		"department":           "Departamento",
		"action":               "Acción",
		"priority":             "Prioridad",
		"description":          "Descripción",
		"status":               "Estado",
		"step":                 "Paso",
		"photos":               "Fotos",
		"df_number":            "Número DF",
		"recorder":             "Registrado por",
		"created_at":           "Creado",
		"planned_closing_date": "Fecha de Cierre Prevista",
		"recent_problems":      "Problemas Recientes",
		"no_problems":          "Aún no hay problemas registrados.",
		"add_component":        "Añadir Componente",
		"add_step":             "Añadir Paso",
		"update_status":        "Actualizar Estado",
		"import":               "Importar",
		"error":                "Error",

		"reasons.missing_components": "Componentes Faltantes",
		"reasons.wrong_part":         "Pieza Incorrecta",
		"reasons.damaged_materials":  "Materiales Dañados",
		"reasons.programming_issue":  "Automatización-Software",
		"reasons.design_issue":       "Problema de Diseño",
		"priority.low":               "Baja",
		"priority.normal":            "Normal",
		"priority.high":              "Alta",
		"action.1":                   "Enviar Piezas",
		"action.2":                   "Reparar en Sitio",
		"action.3":                   "Soporte al Cliente",
		"action.4":                   "Revisión de Software",
		"department.sales":           "Ventas",
		"department.design":          "Diseño",
		"department.method":          "Método",
		"department.purchase":        "Compras",
		"department.manufacturing":   "Fabricación",
		"department.warehouse":       "Almacén",
		"department.quality":         "Calidad",
		"department.shipment":        "Envío",
		"department.automation":      "Automatización",
		"department.electronics":     "Electrónica",
		"status.waiting":             "En Espera",
		"status.finished":            "Terminado",
		"status.cancel":              "Cancelado",
	},
}

var messageCatalog = buildCatalog()

// buildCatalog loads uiMessages plus the English labels of every option set
// and step status into an x/text catalog. Each language starts from the
// English strings so missing entries read in English.
func buildCatalog() catalog.Catalog {
	english := map[string]string{}
	for _, set := range []models.OptionSet{models.Reasons(), models.Departments(), models.Actions(), models.Priorities()} {
		for _, o := range set.Options() {
			english[o.Key] = o.Default
		}
	}
	for _, s := range models.StepStatuses() {
		english[statusMessageKey(s)] = s.Label()
	}
	for key, msg := range uiMessages["en"] {
		english[key] = msg
	}

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, lang := range models.SupportedLanguages {
		tag := language.MustParse(lang)
		for key, msg := range english {
			_ = b.SetString(tag, key, msg)
		}
		for key, msg := range uiMessages[lang] {
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

func statusMessageKey(s models.StepStatus) string {
	return "status." + string(s)
}

// Translator renders interface strings in one language
type Translator struct {
	lang    string
	printer *message.Printer
}

// NewTranslator returns a translator for lang, English when unsupported
func NewTranslator(lang string) *Translator {
	if !models.IsSupportedLanguage(lang) {
		lang = models.SupportedLanguages[0]
	}
	return &Translator{
		lang:    lang,
		printer: message.NewPrinter(language.MustParse(lang), message.Catalog(messageCatalog)),
	}
}

// Lang returns the language code
func (t *Translator) Lang() string {
	return t.lang
}

// T translates a message key; unknown keys come back unchanged. Free text
// with a % verb is never handed to the printer.
func (t *Translator) T(key string) string {
	if key == "" || strings.Contains(key, "%") {
		return key
	}
	return t.printer.Sprintf(key)
}

// Option translates a stored option key, passing nil and unknown values through
func (t *Translator) Option(key *string) string {
	if key == nil {
		return ""
	}
	return t.T(*key)
}

// Status translates a step status
func (t *Translator) Status(s models.StepStatus) string {
	return t.T(statusMessageKey(s))
}
