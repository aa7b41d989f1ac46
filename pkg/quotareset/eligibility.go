package quotareset

// Eligible returns the subset of users provisioned for usage tracking.
// A record without a usage counter was never provisioned; including it would
// fabricate period fields on accounts the rest of the system does not expect
// to carry them. An empty input yields an empty subset.
func Eligible(users []User) []User {
	eligible := make([]User, 0, len(users))
	for i := range users {
		if users[i].Provisioned() {
			eligible = append(eligible, users[i])
		}
	}
	return eligible
}
