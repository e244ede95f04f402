package session

import "github.com/pscheid92/faredesk/internal/domain"

var agencies = map[string]domain.Agency{
	"SYS_ADMIN":    {Code: "SYS_ADMIN", Name: "Settlement Center", Level: domain.LevelAdmin},
	"OPER_KR":      {Code: "OPER_KR", Name: "National Transit Operator", Level: domain.LevelService},
	"OPER_METRO":   {Code: "OPER_METRO", Name: "Metropolitan Transit Operator", Level: domain.LevelService},
	"PARTNER_BUS":  {Code: "PARTNER_BUS", Name: "Bus Partner", Level: domain.LevelPartner},
	"PARTNER_RAIL": {Code: "PARTNER_RAIL", Name: "Rail Partner", Level: domain.LevelPartner},
}

// ClassifyAgency maps an authority agency code onto the agency table. Codes
// missing from the table are treated as guests under their own name.
func ClassifyAgency(code string) domain.Agency {
	if a, ok := agencies[code]; ok {
		return a
	}
	return domain.Agency{Code: code, Name: code, Level: domain.LevelGuest}
}

func PermissionsFor(level domain.AgencyLevel) domain.Permissions {
	switch level {
	case domain.LevelAdmin:
		return domain.Permissions{Settlement: true, MockSettlement: true, RouteSearch: true, Administration: true}
	case domain.LevelService:
		return domain.Permissions{Settlement: true, RouteSearch: true}
	case domain.LevelPartner:
		return domain.Permissions{RouteSearch: true}
	default:
		return domain.Permissions{}
	}
}

// derive returns the agency and its permissions as one unit so the two can
// only ever be assigned together.
func derive(code string) (*domain.Agency, *domain.Permissions) {
	agency := ClassifyAgency(code)
	perms := PermissionsFor(agency.Level)
	return &agency, &perms
}
