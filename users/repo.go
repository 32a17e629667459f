package users

type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetPasswordHash(email, hash string) error
}
