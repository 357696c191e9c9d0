package catalog

// Default returns the bakery's built-in menu.
func Default() *Catalog {
	c, err := New(defaultItems)
	if err != nil {
		panic("catalog: invalid built-in menu: " + err.Error())
	}
	return c
}

var defaultItems = []MenuItem{
	{ID: 1, Name: "Vanilla Cake", Category: CategoryCakes, Price: 450, MinOrder: 1, MinOrderText: "Minimum 1 cake", Description: "Classic soft, moist eggless vanilla cake"},
	{ID: 2, Name: "Chocolate Cake", Category: CategoryCakes, Price: 500, MinOrder: 1, MinOrderText: "Minimum 1 cake", Description: "Rich, decadent eggless chocolate cake"},
	{ID: 3, Name: "Strawberry Cake", Category: CategoryCakes, Price: 550, MinOrder: 1, MinOrderText: "Minimum 1 cake", Description: "Fresh strawberry eggless cake with real fruit"},
	{ID: 4, Name: "Butterscotch Cake", Category: CategoryCakes, Price: 550, MinOrder: 1, MinOrderText: "Minimum 1 cake", Description: "Butterscotch delight with caramel flavoring"},

	// 1 box = 250g
	{ID: 5, Name: "Peanut Butter Cookies", Category: CategoryCookies, Price: 200, MinOrder: 1, PriceUnit: "/box", MinOrderText: "Minimum 1 box (250g)", Description: "Crunchy eggless cookies (250g box)"},
	{ID: 6, Name: "Chocolate Cookies", Category: CategoryCookies, Price: 180, MinOrder: 1, PriceUnit: "/box", MinOrderText: "Minimum 1 box (250g)", Description: "Soft eggless chocolate cookies with chips (250g box)"},
	{ID: 7, Name: "Almond Cookies", Category: CategoryCookies, Price: 190, MinOrder: 1, PriceUnit: "/box", MinOrderText: "Minimum 1 box (250g)", Description: "Crunchy almond cookies with real pieces (250g box)"},
	{ID: 8, Name: "Butter Cream Cookies", Category: CategoryCookies, Price: 160, MinOrder: 1, PriceUnit: "/box", MinOrderText: "Minimum 1 box (250g)", Description: "Smooth butter cream cookies (250g box)"},

	{ID: 9, Name: "Chocolate Cupcakes", Category: CategoryCupcakes, Price: 40, MinOrder: 4, PriceUnit: "/piece", MinOrderText: "Minimum 4 pieces", Description: "Moist chocolate cupcakes with creamy frosting"},
	{ID: 10, Name: "Whole Wheat Banana Muffins", Category: CategoryCupcakes, Price: 35, MinOrder: 4, PriceUnit: "/piece", MinOrderText: "Minimum 4 pieces", Description: "Healthy whole wheat banana muffins"},
	{ID: 11, Name: "Cheesecake Cupcakes", Category: CategoryCupcakes, Price: 55, MinOrder: 4, PriceUnit: "/piece", MinOrderText: "Minimum 4 pieces", Description: "Creamy cheesecake cupcakes with graham base"},
}
