package models

type Role string

const (
	RoleAdmin                 Role = "ADMIN"
	RoleDirection             Role = "DIRECTION"
	RoleCoordinateur          Role = "COORDINATEUR"
	RoleResponsableLogistique Role = "RESPONSABLE_LOGISTIQUE"
	RoleMagasinier            Role = "MAGASINIER"
	RoleMaintenancier         Role = "MAINTENANCIER"
)

// User is the directory entry used to address notifications.
type User struct {
	ID        int64  `bson:"_id" json:"id"`
	Email     string `bson:"email" json:"email"`
	FirstName string `bson:"first_name" json:"firstName"`
	LastName  string `bson:"last_name" json:"lastName"`
	Role      Role   `bson:"role" json:"role"`
	Active    bool   `bson:"active" json:"active"`
}
