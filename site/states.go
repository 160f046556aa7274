// Package site holds the small computations behind the fan zone pages:
// the tournament countdown, the animated stat counters, naira formatting and
// the list of states accepted on registration forms.
package site

import "strings"

// NigerianStates lists the 36 states plus the FCT.
var NigerianStates = []string{
	"Abia", "Adamawa", "Akwa Ibom", "Anambra", "Bauchi", "Bayelsa", "Benue", "Borno",
	"Cross River", "Delta", "Ebonyi", "Edo", "Ekiti", "Enugu", "FCT", "Gombe", "Imo",
	"Jigawa", "Kaduna", "Kano", "Katsina", "Kebbi", "Kogi", "Kwara", "Lagos", "Nasarawa",
	"Niger", "Ogun", "Ondo", "Osun", "Oyo", "Plateau", "Rivers", "Sokoto", "Taraba",
	"Yobe", "Zamfara",
}

// IsNigerianState reports whether name is in NigerianStates, ignoring case.
func IsNigerianState(name string) bool {
	name = strings.TrimSpace(name)
	for _, s := range NigerianStates {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
