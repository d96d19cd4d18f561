package topic

import "github.com/trezcool/temario/core/user"

const (
	unknownBadgeColor = "#95a5a6"
	unknownBadgeIcon  = "❓"
)

type StatusBadge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type VisibilityBadge struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

var (
	statusBadges = map[Status]StatusBadge{
		StatusDraft:            {Text: "Borrador", Color: "#6c757d", Icon: "📝"},
		StatusPendingReview:    {Text: "Pendiente de revisión", Color: "#f39c12", Icon: "⏳"},
		StatusApproved:         {Text: "Aprobado", Color: "#27ae60", Icon: "✅"},
		StatusRejected:         {Text: "Rechazado", Color: "#e74c3c", Icon: "❌"},
		StatusChangesRequested: {Text: "Cambios solicitados", Color: "#e67e22", Icon: "🔄"},
		StatusEditing:          {Text: "En edición", Color: "#3498db", Icon: "✏️"},
		StatusArchived:         {Text: "Archivado", Color: "#7f8c8d", Icon: "📦"},
	}

	visibilityBadges = map[Visibility]VisibilityBadge{
		VisibilityPublic:       {Text: "Público", Icon: "🌍"},
		VisibilityOrganization: {Text: "Organización", Icon: "🏢"},
		VisibilityPrivate:      {Text: "Privado", Icon: "🔒"},
	}

	helpMessages = map[user.Role]string{
		user.RoleStudent:  "Explora los temas aprobados de tu organización y los temas públicos para estudiar.",
		user.RoleTeacher:  "Crea temas en borrador, edítalos y envíalos a revisión cuando estén listos.",
		user.RoleReviewer: "Revisa los temas pendientes de tu organización: apruébalos, recházalos o solicita cambios.",
		user.RoleAdmin:    "Gestiona los temas de tu organización: revisa, edita, archiva y resuelve solicitudes de edición.",
	}

	superHelpMessage   = "Como superusuario tienes acceso completo a todos los temas y organizaciones."
	loginHelpMessage   = "Inicia sesión para ver y gestionar temas."
	defaultHelpMessage = "Explora los temas disponibles."
)

// StatusBadgeFor returns the display record of s. Unknown statuses echo their raw value.
func StatusBadgeFor(s Status) StatusBadge {
	if badge, ok := statusBadges[s]; ok {
		return badge
	}
	return StatusBadge{Text: string(s), Color: unknownBadgeColor, Icon: unknownBadgeIcon}
}

// VisibilityBadgeFor returns the display record of v. Unknown values echo their raw value.
func VisibilityBadgeFor(v Visibility) VisibilityBadge {
	if badge, ok := visibilityBadges[v]; ok {
		return badge
	}
	return VisibilityBadge{Text: string(v), Icon: unknownBadgeIcon}
}

// HelpMessage returns the hint shown to usr. nil means not logged in.
func HelpMessage(usr *user.User) string {
	if usr == nil {
		return loginHelpMessage
	}
	if usr.IsSuper {
		return superHelpMessage
	}
	if msg, ok := helpMessages[usr.Role]; ok {
		return msg
	}
	return defaultHelpMessage
}
