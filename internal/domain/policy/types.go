package policy

// Tier represents an employee rank, the primary key into the catalog
type Tier string

const (
	TierExecutive        Tier = "Executive Level"
	TierSeniorManagement Tier = "Senior Management"
	TierMiddleManagement Tier = "Middle Management"
	TierLowerManagement  Tier = "Lower Management"
	TierTeamLeads        Tier = "Team Leads & Supervisors"
	TierStaff            Tier = "Staff & Employees"
)

// DefaultTier is assumed when a record carries no employee level
const DefaultTier = TierStaff

// tierOrder lists tiers from most to least generous
var tierOrder = []Tier{
	TierExecutive,
	TierSeniorManagement,
	TierMiddleManagement,
	TierLowerManagement,
	TierTeamLeads,
	TierStaff,
}

// Tiers returns all known tiers ordered executive to staff
func Tiers() []Tier {
	return append([]Tier(nil), tierOrder...)
}

// Rank returns the tier position (0 = executive) or -1 for an unknown tier
func (t Tier) Rank() int {
	for i, known := range tierOrder {
		if known == t {
			return i
		}
	}
	return -1
}

// IsValid returns true if the tier is one of the six known ranks
func (t Tier) IsValid() bool {
	return t.Rank() >= 0
}

// String returns the string representation of the tier
func (t Tier) String() string {
	return string(t)
}

// Category groups related expense kinds
type Category string

const (
	CategoryTravel             Category = "Travel Expenses"
	CategoryAccommodation      Category = "Accommodation"
	CategorySupplies           Category = "Office Supplies and Equipment"
	CategoryCommunication      Category = "Communication Expenses"
	CategoryMealsEntertainment Category = "Meals and Entertainment"
)

var categoryOrder = []Category{
	CategoryTravel,
	CategoryAccommodation,
	CategorySupplies,
	CategoryCommunication,
	CategoryMealsEntertainment,
}

// Categories returns all known categories in catalog order
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// IsValid returns true if the category is known
func (c Category) IsValid() bool {
	for _, known := range categoryOrder {
		if known == c {
			return true
		}
	}
	return false
}

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// Kind is a specific expense line type within a category
type Kind string

const (
	KindBusinessTrips        Kind = "Business Trips"
	KindLocalTransportation  Kind = "Local Transportation"
	KindMileageReimbursement Kind = "Mileage Reimbursement"
	KindParkingTolls         Kind = "Parking Fees & Tolls"
	KindHotelStays           Kind = "Hotel Stays"
	KindRentalAllowance      Kind = "Rental Allowance"
	KindMealsDuringTravel    Kind = "Meals During Travel"
	KindWorkTools            Kind = "Work Tools"
	KindHomeOfficeSetup      Kind = "Home Office Setup"
	KindMobileInternet       Kind = "Mobile/Internet Bills"
	KindClientMeetings       Kind = "Client Meetings"
	KindTeamOutings          Kind = "Team Outings"
	KindDailyMealAllowance   Kind = "Daily Meal Allowance"
)

var kindCategory = map[Kind]Category{
	KindBusinessTrips:        CategoryTravel,
	KindLocalTransportation:  CategoryTravel,
	KindMileageReimbursement: CategoryTravel,
	KindParkingTolls:         CategoryTravel,
	KindHotelStays:           CategoryAccommodation,
	KindRentalAllowance:      CategoryAccommodation,
	KindMealsDuringTravel:    CategoryAccommodation,
	KindWorkTools:            CategorySupplies,
	KindHomeOfficeSetup:      CategorySupplies,
	KindMobileInternet:       CategoryCommunication,
	KindClientMeetings:       CategoryMealsEntertainment,
	KindTeamOutings:          CategoryMealsEntertainment,
	KindDailyMealAllowance:   CategoryMealsEntertainment,
}

var kindOrder = []Kind{
	KindBusinessTrips,
	KindLocalTransportation,
	KindMileageReimbursement,
	KindParkingTolls,
	KindHotelStays,
	KindRentalAllowance,
	KindMealsDuringTravel,
	KindWorkTools,
	KindHomeOfficeSetup,
	KindMobileInternet,
	KindClientMeetings,
	KindTeamOutings,
	KindDailyMealAllowance,
}

// Category returns the category the kind belongs to, or "" for an unknown kind
func (k Kind) Category() Category {
	return kindCategory[k]
}

// IsValid returns true if the kind is known
func (k Kind) IsValid() bool {
	_, ok := kindCategory[k]
	return ok
}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}
