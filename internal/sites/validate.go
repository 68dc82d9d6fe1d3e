package sites

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/models"
	"storefront/internal/storage"
)

// maxImageRefLen bounds an image reference. Inline data URIs of a 5 MB
// image are about 7 million characters once base64-encoded.
const maxImageRefLen = 7_000_000

// ProductInput is one product row of the site form.
type ProductInput struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Price string `json:"price" validate:"required,min=1,max=50"`
	Image string `json:"image" validate:"omitempty,imageref"`
}

// Input is the site form as submitted for create and update.
type Input struct {
	StoreName   string         `json:"storeName" validate:"required,min=2,max=100"`
	Tagline     string         `json:"tagline" validate:"max=200"`
	About       string         `json:"about" validate:"required,min=10,max=5000"`
	Products    []ProductInput `json:"products" validate:"required,min=1,max=50,dive"`
	ContactInfo string         `json:"contactInfo" validate:"required,min=10,max=500"`
	SocialLinks string         `json:"socialLinks" validate:"max=500"`
	StoreHours  string         `json:"storeHours" validate:"max=300"`
	HeaderImage string         `json:"headerImage" validate:"omitempty,imageref"`
}

// Normalize trims surrounding whitespace from every text field so that
// blank input cannot pass the length checks.
func (in *Input) Normalize() {
	in.StoreName = strings.TrimSpace(in.StoreName)
	in.Tagline = strings.TrimSpace(in.Tagline)
	in.About = strings.TrimSpace(in.About)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	in.SocialLinks = strings.TrimSpace(in.SocialLinks)
	in.StoreHours = strings.TrimSpace(in.StoreHours)
	in.HeaderImage = strings.TrimSpace(in.HeaderImage)
	for i := range in.Products {
		in.Products[i].Name = strings.TrimSpace(in.Products[i].Name)
		in.Products[i].Price = strings.TrimSpace(in.Products[i].Price)
		in.Products[i].Image = strings.TrimSpace(in.Products[i].Image)
	}
}

// products converts the form rows into the stored product list.
func (in *Input) products() []models.Product {
	out := make([]models.Product, len(in.Products))
	for i, p := range in.Products {
		out[i] = models.Product{Name: p.Name, Price: p.Price, Image: p.Image}
	}
	return out
}

// InputFromSite pre-fills the edit form from a stored site.
func InputFromSite(s *models.Site) Input {
	in := Input{
		StoreName:   s.StoreName,
		Tagline:     s.Tagline,
		About:       s.About,
		ContactInfo: s.ContactInfo,
		SocialLinks: s.SocialLinks,
		StoreHours:  s.StoreHours,
		HeaderImage: s.HeaderImage,
	}
	for _, p := range s.Products {
		in.Products = append(in.Products, ProductInput{Name: p.Name, Price: p.Price, Image: p.Image})
	}
	return in
}

// ValidationError maps form field paths ("storeName", "products[0].name")
// to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid site input: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		ref := fl.Field().String()
		if len(ref) > maxImageRefLen {
			return false
		}
		if models.IsImageURL(ref) {
			return true
		}
		// Inline images must be what object storage would accept, so both
		// deployments reject the same input here.
		return storage.CheckDataURI(ref) == nil
	})
	return v
}

// fieldLabels names fields in messages, keyed by their json name.
var fieldLabels = map[string]string{
	"storeName":   "Store name",
	"tagline":     "Tagline",
	"about":       "About section",
	"products":    "Products",
	"contactInfo": "Contact info",
	"socialLinks": "Social links",
	"storeHours":  "Store hours",
	"headerImage": "Header image",
	"name":        "Product name",
	"price":       "Price",
	"image":       "Product image",
}

// Validate normalizes and checks the input. It returns a *ValidationError
// describing every failing field, or nil.
func (in *Input) Validate() error {
	in.Normalize()

	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest // drop the struct name
		}
		if _, seen := fields[path]; !seen {
			fields[path] = message(fe)
		}
	}
	return &ValidationError{Fields: fields}
}

func message(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required", "min":
		switch fe.Field() {
		case "products":
			return "Please add at least one product."
		case "price":
			return "Price is required."
		}
		return fmt.Sprintf("%s must be at least %s characters.", label, minFor(fe))
	case "max":
		if fe.Field() == "products" {
			return fmt.Sprintf("At most %s products are allowed.", fe.Param())
		}
		return fmt.Sprintf("%s is too long (max %s characters).", label, fe.Param())
	case "imageref":
		return fmt.Sprintf("%s must be an http(s) URL or a JPEG, PNG, GIF or WebP image up to 5 MB.", label)
	}
	return fmt.Sprintf("%s is invalid.", label)
}

// minFor returns the min= parameter of a field, also for "required"
// failures where the validator does not report it.
func minFor(fe validator.FieldError) string {
	if fe.Tag() == "min" {
		return fe.Param()
	}
	switch fe.Field() {
	case "storeName", "name":
		return "2"
	case "about", "contactInfo":
		return "10"
	}
	return "1"
}
