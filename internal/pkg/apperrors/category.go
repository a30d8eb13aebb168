package apperrors

// Category определяет функциональную область, в которой возникла ошибка.
type Category string

// Категории ошибок.
const (
	CategorySystem         Category = "system"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryNetwork        Category = "network"
	CategoryDatabase       Category = "database"
	CategoryFileSystem     Category = "file_system"
	CategoryUserInterface  Category = "user_interface"
	CategoryDataProcessing Category = "data_processing"
	CategoryEvidence       Category = "evidence"
	CategorySensor         Category = "sensor"
	CategoryInvestigation  Category = "investigation"
	CategoryConfiguration  Category = "configuration"
	CategoryIntegration    Category = "integration"
	CategoryValidation     Category = "validation"
	CategoryBusinessLogic  Category = "business_logic"
)

// AllCategories возвращает все известные категории в фиксированном порядке.
func AllCategories() []Category {
	return []Category{
		CategorySystem, CategoryAuthentication, CategoryAuthorization, CategoryNetwork,
		CategoryDatabase, CategoryFileSystem, CategoryUserInterface, CategoryDataProcessing,
		CategoryEvidence, CategorySensor, CategoryInvestigation, CategoryConfiguration,
		CategoryIntegration, CategoryValidation, CategoryBusinessLogic,
	}
}

// Valid проверяет, что категория входит в таксономию.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}
