package models

// User представляет покупателя или сотрудника магазина
type User struct {
	ID        int64
	Email     string
	PassHash  []byte
	FirstName string
	LastName  string
	IsStaff   bool
	IsActive  bool
}

// FullName возвращает имя и фамилию через пробел
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
